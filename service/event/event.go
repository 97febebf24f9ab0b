package event

import (
	"time"

	"github.com/viant/tapedeck/internal/clock"
	"github.com/viant/tapedeck/internal/idgen"
)

// Event types published by the registry
const (
	TypeTransition   = "transition"
	TypeVerification = "verification"
)

// Context identifies what an event relates to
type Context struct {
	SessionID   uint32 `json:"sessionID"`
	EventType   string `json:"eventType"`
	Operation   string `json:"operation,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

// Event wraps a payload published on the event service
type Event[T any] struct {
	ID        string                 `json:"id"`
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		ID:        idgen.New(),
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
