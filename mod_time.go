package lightmapper

import (
	"time"
)

type Time struct {
	Time  time.Time
	Dt    time.Duration
	Frame uint64

	fixedStep time.Duration
}

// TimeModule keeps a Time resource current. A non-zero FixedStep replaces the
// wall-clock delta, which makes frame-counted behaviour reproducible.
type TimeModule struct {
	FixedStep time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time:      time.Now(),
		fixedStep: mod.FixedStep,
	})
	app.UseSystem(
		System(timeSystem).
			InStage(Prelude),
	)
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	if timeResource.fixedStep > 0 {
		timeResource.Dt = timeResource.fixedStep
	} else {
		timeResource.Dt = now.Sub(timeResource.Time)
	}
	timeResource.Time = now
	timeResource.Frame++
}
