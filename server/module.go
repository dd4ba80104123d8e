package server

// Module is the capability interface every installable server component
// implements, replacing the teacher's virtual module base class with a
// small install-time contract: a name for logging, a priority that
// orders install/shutdown, and the install call itself.
type Module interface {
	// Name identifies the module in startup/shutdown logs.
	Name() string
	// Priority orders installation: lower values install first. Modules
	// are torn down in the reverse of install order.
	Priority() int
	// Install wires the module into the running server. It may register
	// packet handlers on ctx.Router, subscribe to ctx.Events, or hold
	// onto ctx.World/ctx.Data for later use.
	Install(ctx *Context) error
}

// moduleCloser pairs an installed module's name with the Closer its
// Install call registered, so Shutdown can report which module failed
// and still tear down the rest, mirroring the teacher's
// cmd/siad/server.go moduleCloser/Close pattern.
type moduleCloser struct {
	name string
	fn   func() error
}
