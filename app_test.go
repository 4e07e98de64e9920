package starfield

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func TestApp_changeState(t *testing.T) {
	app := newApp()
	app.stateful = true
	app.initialState = 1
	app.state = 1
	app.finalState = 2
	app.initStages()

	app.changeState(2)
	assert.Equal(t, State(2), app.nextState, "The nextState should be set correctly.")
	assert.True(t, app.stateTransitioning, "The stateTransitioning flag should be true.")

	app.executeChangeState(2)
	assert.Equal(t, State(2), app.state, "The app state should change correctly.")
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := &MockResource1{name: "Resource1"}
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := &MockResource2{name: "Resource2"}
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	assert.Same(t, resource2, ResourceOf[MockResource2](app))
	assert.Nil(t, ResourceOf[Time](app))
}

func TestApp_addResourcesRejectsValues(t *testing.T) {
	app := newApp()
	require.Panics(t, func() {
		app.addResources(MockResource1{name: "by value"})
	})
}

func TestApp_SystemResolvesDependencies(t *testing.T) {
	var got *MockResource1
	var gotLogger Logger
	var gotCmd *Commands

	app := NewAppBuilder().Build()
	app.addResources(&MockResource1{name: "r"})
	app.UseSystem(System(func(r *MockResource1, log Logger, cmd *Commands) {
		got, gotLogger, gotCmd = r, log, cmd
		cmd.Exit()
	}))

	assert.False(t, app.Step())
	require.NotNil(t, got)
	assert.Equal(t, "r", got.name)
	assert.NotNil(t, gotLogger)
	assert.NotNil(t, gotCmd)
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(*MockResource2) {}))
	assert.Panics(t, func() { app.Step() })
}

func TestApp_StatePhases(t *testing.T) {
	const (
		first State = iota
		second
		last
	)
	var calls []string
	record := func(name string) func() {
		return func() { calls = append(calls, name) }
	}

	app := NewAppBuilder().UseStates(first, last).Build()
	app.UseSystem(System(record("enter first")).InState(OnEnter(first)))
	app.UseSystem(System(func(cmd *Commands) {
		calls = append(calls, "execute first")
		cmd.ChangeState(second)
	}).InState(OnExecute(first)))
	app.UseSystem(System(record("exit first")).InState(OnExit(first)))
	app.UseSystem(System(func(cmd *Commands) {
		calls = append(calls, "enter second")
		// chained: settles in the same tick
		cmd.Exit()
	}).InState(OnEnter(second)))
	app.UseSystem(System(record("exit second")).InState(OnExit(second)))
	app.UseSystem(System(record("enter last")).InState(OnEnter(last)))
	app.UseSystem(System(record("exit last")).InState(OnExit(last)))
	app.UseSystem(System(record("always")).InStage(Prelude).RunAlways())

	assert.False(t, app.Step())
	assert.True(t, app.Done())
	assert.Equal(t, last, app.State())
	assert.Equal(t, []string{
		"enter first",
		"always",
		"execute first",
		"exit first",
		"enter second",
		"exit second",
		"enter last",
		"exit last",
	}, calls)
	assert.False(t, app.Step(), "a finished app does not step again")
}

func TestApp_UseSystemUnknownStage(t *testing.T) {
	app := NewAppBuilder().UseStates(0, 1).Build()
	assert.PanicsWithValue(t, "Stage Nowhere doesn't exist", func() {
		app.UseSystem(System(func() {}).InStage(Stage{Name: "Nowhere"}).RunAlways())
	})
	assert.PanicsWithValue(t, "State state(5) doesn't exist", func() {
		app.UseSystem(System(func() {}).InState(OnEnter(5)))
	})
}

func TestApp_StatefulSystemInStatelessApp(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.Panics(t, func() {
		app.UseSystem(System(func() {}).InState(OnEnter(0)))
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "probing", StateProbing.String())
	assert.Equal(t, "fallback-active", StateFallbackActive.String())
	assert.Equal(t, "state(42)", State(42).String())
}
