package registry

import (
	"context"

	model "github.com/viant/tapedeck/model/session"
)

// Kind represents a registry request kind
type Kind string

const (
	KindSpawn    Kind = "spawn"
	KindStop     Kind = "stop"
	KindList     Kind = "list"
	KindNavigate Kind = "navigate"
	KindShutdown Kind = "shutdown"
)

// Request is a single mailbox entry. Reply is buffered and written exactly once by the control loop.
type Request struct {
	Kind   Kind
	Config *model.Config
	ID     uint32
	URL    string
	Reply  chan *Reply
	ctx    context.Context
}

// Reply carries the request outcome
type Reply struct {
	Err      error
	Sessions []*model.Info
	panicked bool
}

func newRequest(ctx context.Context, kind Kind) *Request {
	return &Request{Kind: kind, ctx: ctx, Reply: make(chan *Reply, 1)}
}
