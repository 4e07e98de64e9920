package starfield

import (
	"time"
)

// Time is the frame clock. Start is when the app was built; Time and Dt
// advance once per tick in the Prelude stage.
type Time struct {
	Start time.Time
	Time  time.Time
	Dt    time.Duration
	Frame uint64

	now func() time.Time
}

// ElapsedMs is the animation time handed to the lifecycle math.
func (t *Time) ElapsedMs() float32 {
	return float32(t.Time.Sub(t.Start).Seconds() * 1000)
}

type TimeModule struct {
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	now := mod.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	cmd.AddResources(&Time{
		Start: start,
		Time:  start,
		now:   now,
	})
	app.UseSystem(
		System(timeSystem).
			InStage(Prelude).
			RunAlways(),
	)
}

func timeSystem(t *Time) {
	now := t.now()

	t.Dt = now.Sub(t.Time)
	t.Time = now
	t.Frame++
}
