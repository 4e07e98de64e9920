package starfield

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// App runs systems stage by stage, once per Step, for the current state.
type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	started            bool
	done               bool
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any
}

func newApp() *App {
	return &App{
		stages:           defaultStages(),
		systems:          make(map[string]map[State]map[statePhase][]systemFn),
		systemsStateless: make(map[string][]systemFn),
		resources:        make(map[reflect.Type]any),
	}
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// State returns the current state. Meaningless for stateless apps.
func (app *App) State() State {
	return app.state
}

// Done reports whether the app reached its final state.
func (app *App) Done() bool {
	return app.done
}

// Run steps the app until it reaches its final state.
func (app *App) Run() {
	if app.stateful {
		app.Logger().Debugf("running in stateful mode")
	} else {
		app.Logger().Debugf("running in stateless mode")
	}
	for app.Step() {
	}
}

// Step runs one tick and reports whether another one should follow. The first
// call enters the initial state. State changes requested by any system are
// applied at the end of the tick, so a chain of transitions requested from
// enter systems settles before Step returns.
func (app *App) Step() bool {
	if app.done {
		return false
	}
	if !app.started {
		app.started = true
		if app.stateful {
			app.state = app.initialState
			app.callSystems(app.state, enter)
			app.settle()
			if app.done {
				return false
			}
		}
	}

	app.callSystems(app.state, execute)
	app.settle()
	return !app.done
}

// Stop requests the final state, or ends a stateless app after this tick.
func (app *App) Stop() {
	if app.stateful {
		app.changeState(app.finalState)
		return
	}
	app.done = true
}

func (app *App) settle() {
	if !app.stateful {
		return
	}
	for app.stateTransitioning {
		app.stateTransitioning = false
		if app.nextState == app.state {
			continue
		}
		app.executeChangeState(app.nextState)
	}
	if app.state == app.finalState {
		app.callSystems(app.state, exit)
		app.done = true
	}
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		// always-run systems go first, and only on execute
		if execute == phase {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}

		if !app.stateful {
			continue
		}
		for _, system := range app.systems[stage.Name][state][phase] {
			app.callSystem(system)
		}
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.Logger().Debugf("state %v -> %v", app.state, newState)
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// ResourceOf returns the installed *T resource, or nil.
func ResourceOf[T any](app *App) *T {
	res, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil
	}
	return res.(*T)
}

func (app *App) callSystem(system systemFn) {
	app.callSystemInternal(system)
}

var (
	typeOfCommands = reflect.TypeOf(Commands{})
	typeOfLogger   = reflect.TypeOf((*Logger)(nil)).Elem()
)

func (app *App) callSystemInternal(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)

		if argType == typeOfLogger {
			args[i] = reflect.ValueOf(app.Logger())
			continue
		}
		if argType.Kind() != reflect.Pointer {
			app.unresolved(systemValue, systemType, argType)
		}

		underlyingType := argType.Elem()
		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, ok := app.resources[underlyingType]; ok {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.unresolved(systemValue, systemType, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemValue reflect.Value, systemType, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	app.Logger().Errorf("%s", msg)
	panic(msg)
}
