// Package recording checks a finished recording is complete and readable.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/service/event"
)

// ErrEmpty is returned for a recording with no data
var ErrEmpty = errors.New("recording is empty")

// Report represents a verified recording
type Report struct {
	SessionID uint32  `json:"sessionId"`
	Location  string  `json:"location"`
	Size      int64   `json:"size"`
	Format    string  `json:"format,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Service verifies recordings
type Service struct {
	fs        afs.Service
	logger    *slog.Logger
	ffprobe   string
	timeoutMs int
	publisher *event.Publisher[Report]
}

// Verify checks location exists and is not empty, then probes its container when ffprobe is configured
func (s *Service) Verify(ctx context.Context, location string) (*Report, error) {
	ret := &Report{Location: location}
	object, err := s.fs.Object(ctx, location)
	if err != nil {
		return ret, fmt.Errorf("failed to locate recording %v: %w", location, err)
	}
	ret.Size = object.Size()
	if ret.Size == 0 {
		return ret, fmt.Errorf("%v: %w", location, ErrEmpty)
	}
	if s.ffprobe == "" {
		return ret, nil
	}
	if err = s.probe(ctx, ret); err != nil {
		return ret, err
	}
	return ret, nil
}

func (s *Service) probe(ctx context.Context, report *Report) error {
	shell, err := gosh.New(ctx, local.New())
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer shell.Close()
	command := fmt.Sprintf("%v -v error -show_entries format=format_name,duration -of default=noprint_wrappers=1 '%v'",
		s.ffprobe, strings.ReplaceAll(report.Location, "'", `'\''`))
	stdout, status, err := shell.Run(ctx, command, runner.WithTimeout(s.timeoutMs))
	if err != nil {
		return fmt.Errorf("failed to probe %v: %w", report.Location, err)
	}
	if status != 0 {
		return fmt.Errorf("failed to probe %v: exit status %d: %v", report.Location, status, strings.TrimSpace(stdout))
	}
	parseProbe(stdout, report)
	if report.Format == "" {
		return fmt.Errorf("failed to probe %v: unknown container", report.Location)
	}
	return nil
}

// parseProbe reads key=value lines printed by ffprobe
func parseProbe(output string, report *Report) {
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "format_name":
			report.Format = value
		case "duration":
			if duration, err := strconv.ParseFloat(value, 64); err == nil {
				report.Duration = duration
			}
		}
	}
}

// OnStopped verifies the file sink of a stopped session; the outcome is
// logged and published, it never changes the stop result
func (s *Service) OnStopped(ctx context.Context, cfg *model.Config, stopErr error) {
	if cfg.Sink.FilePath == "" {
		return
	}
	logger := s.logger.With("session_id", cfg.ID, "location", cfg.Sink.FilePath)
	report, err := s.Verify(ctx, cfg.Sink.FilePath)
	report.SessionID = cfg.ID
	if err != nil {
		report.Error = err.Error()
		logger.Error("recording verification failed", "error", err, "stop_error", stopErr)
	} else {
		logger.Info("recording verified", "size", report.Size, "format", report.Format, "duration", report.Duration)
	}
	if s.publisher == nil {
		return
	}
	evt := event.NewEvent(&event.Context{SessionID: cfg.ID, EventType: event.TypeVerification, Operation: "verify"}, *report)
	if err = s.publisher.Publish(ctx, evt); err != nil {
		logger.Warn("failed to publish verification", "error", err)
	}
}

// New creates a recording verifier
func New(options ...Option) *Service {
	ret := &Service{timeoutMs: 30000}
	for _, opt := range options {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	return ret
}
