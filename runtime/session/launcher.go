package session

import (
	"context"

	"github.com/viant/tapedeck/model/resource"
	model "github.com/viant/tapedeck/model/session"
)

// Launcher starts the resources a session is built from. Implementations never
// unwind earlier resources, the session does it.
type Launcher interface {
	LaunchBus(ctx context.Context, cfg *model.Config) (resource.Process, string, error)
	LaunchDisplay(ctx context.Context, cfg *model.Config, busAddress string) (resource.Process, error)
	LaunchAudio(ctx context.Context, cfg *model.Config, busAddress string) (resource.Process, error)
	LaunchBrowser(ctx context.Context, cfg *model.Config, busAddress string) (resource.Browser, error)
	LaunchPreview(ctx context.Context, cfg *model.Config) (resource.Pipeline, error)
	LaunchEncode(ctx context.Context, cfg *model.Config) (resource.Pipeline, error)
}
