package session

import "time"

// State represents the current lifecycle state of a session
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	// StateFailed is reached when the start sequence aborted and was unwound
	StateFailed State = "failed"
)

// IsTerminal returns true for states no transition leaves
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// Transition describes a single lifecycle state change
type Transition struct {
	ID    uint32 `json:"id"`
	From  State  `json:"from"`
	To    State  `json:"to"`
	Error string `json:"error,omitempty"`
}

// Info is a read only snapshot of a live session
type Info struct {
	ID          uint32         `json:"id"`
	State       State          `json:"state"`
	Display     string         `json:"display"`
	AudioServer string         `json:"audioServer"`
	TargetURL   string         `json:"url"`
	Sink        Sink           `json:"sink"`
	Preview     bool           `json:"preview,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	Pids        map[string]int `json:"pids,omitempty"`
}
