package starfield

// Commands is handed to systems that need to change the app itself.
type Commands struct {
	app *App
}

// ChangeState schedules a transition, applied at the end of the tick.
func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.changeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

// Exit moves the app to its final state.
func (cmd *Commands) Exit() {
	cmd.app.Stop()
}

// State returns the state systems are currently running in.
func (cmd *Commands) State() State {
	return cmd.app.state
}

// NextState is the state being entered while exit systems run.
func (cmd *Commands) NextState() State {
	return cmd.app.nextState
}
