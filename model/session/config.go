package session

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// MaxID is the exclusive upper bound of a session id. Ids are zero padded to
// four digits when deriving the display and audio server addresses.
const MaxID = 10000

// LoopbackSink is the name of the null sink every audio server exposes.
const LoopbackSink = "loopback"

// FrameSize represents virtual display dimensions in pixels
type FrameSize struct {
	Width  uint32 `json:"width" yaml:"width"`
	Height uint32 `json:"height" yaml:"height"`
}

// String returns WxH
func (f FrameSize) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Sink describes where an encode pipeline writes to. At least one target is required.
type Sink struct {
	FilePath      string `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	NetworkTarget string `json:"networkTarget,omitempty" yaml:"networkTarget,omitempty"`
	// NetworkSecret names a secret resource whose password is appended to NetworkTarget as the stream key
	NetworkSecret string `json:"networkSecret,omitempty" yaml:"networkSecret,omitempty"`
}

// IsEmpty returns true when no target is configured
func (s Sink) IsEmpty() bool {
	return s.FilePath == "" && s.NetworkTarget == ""
}

// Config represents immutable session creation parameters.
// The id uniquely determines the display namespace and the audio server port.
type Config struct {
	ID             uint32    `json:"id" yaml:"id"`
	FrameSize      FrameSize `json:"frameSize" yaml:"frameSize"`
	TargetURL      string    `json:"url" yaml:"url"`
	PreviewEnabled bool      `json:"preview,omitempty" yaml:"preview,omitempty"`
	Sink           Sink      `json:"sink" yaml:"sink"`
}

// Validate checks the config once, before any resource is started
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config was nil", ErrInvalidConfig)
	}
	if c.ID >= MaxID {
		return fmt.Errorf("%w: id %d out of range [0,%d)", ErrInvalidConfig, c.ID, MaxID)
	}
	if c.FrameSize.Width == 0 || c.FrameSize.Height == 0 {
		return fmt.Errorf("%w: frame size %v", ErrInvalidConfig, c.FrameSize)
	}
	if c.TargetURL == "" {
		return fmt.Errorf("%w: target url was empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: target url %q is not absolute", ErrInvalidConfig, c.TargetURL)
	}
	if c.Sink.IsEmpty() {
		return fmt.Errorf("%w: session %d has no encode sink", ErrInvalidConfig, c.ID)
	}
	return nil
}

// paddedID is shared by Display and AudioServer so both stay in lockstep
func (c *Config) paddedID() string {
	return fmt.Sprintf("1%04d", c.ID)
}

// Display returns the X display identifier, e.g. ":10007"
func (c *Config) Display() string {
	return ":" + c.paddedID()
}

// AudioServer returns the pulse server address, e.g. "tcp:localhost:10007"
func (c *Config) AudioServer() string {
	return "tcp:localhost:" + c.paddedID()
}

// AudioPort returns the numeric form of the audio server port
func (c *Config) AudioPort() int {
	return MaxID + int(c.ID)
}

// DisplayNumber returns the display without the leading colon
func (c *Config) DisplayNumber() string {
	return strings.TrimPrefix(c.Display(), ":")
}

// RecordingPath returns <dir>/recording-<id>.mp4
func RecordingPath(dir string, id uint32) string {
	return path.Join(dir, fmt.Sprintf("recording-%d.mp4", id))
}
