// Package resource defines the handles a session owns. Launchers return them,
// sessions drive them through their lifecycle; nothing else holds a reference.
package resource

// Process represents a live external OS process
type Process interface {
	// Name returns the resource name used in logs and errors
	Name() string

	// Pid returns the OS process id
	Pid() int

	// Terminate asks the process to exit, escalating to a kill after the grace period
	Terminate() error

	// Wait blocks until the process exited
	Wait() error

	// Exited is closed once the process exited
	Exited() <-chan struct{}

	// Running reports whether the OS still sees the process alive
	Running() bool
}

// Browser represents an automated browser attached to a session display
type Browser interface {
	// Navigate loads url in the tab and waits for the load to complete
	Navigate(url string) error

	// Close releases the tab and terminates the browser process
	Close() error

	// Running reports whether the browser is still usable
	Running() bool
}

// Pipeline represents a started media pipeline
type Pipeline interface {
	Name() string

	// SendEOS asks the pipeline to flush all buffered media and finish
	SendEOS() error

	// Ended is closed once the pipeline bus reported end-of-stream
	Ended() <-chan struct{}

	// Exited is closed once the pipeline is no longer running
	Exited() <-chan struct{}

	// SetNull moves the pipeline to the inert state releasing codec and device resources
	SetNull() error

	Running() bool
}
