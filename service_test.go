package tapedeck_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tapedeck"
	"github.com/viant/tapedeck/internal/fake"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/service/recording"
)

func newTestService(t *testing.T, mutate func(cfg *tapedeck.Config)) (*tapedeck.Service, *fake.Launcher) {
	cfg := tapedeck.DefaultConfig()
	cfg.EncodeDir = filepath.Join(t.TempDir(), "recordings")
	if mutate != nil {
		mutate(cfg)
	}
	launcher := fake.NewLauncher()
	srv, err := tapedeck.New(cfg,
		tapedeck.WithLauncher(launcher),
		tapedeck.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return srv, launcher
}

func TestService_Record(t *testing.T) {
	srv, launcher := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))

	info, err := os.Stat(srv.Config().EncodeDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, srv.Record(ctx, 0, "https://example.com"))
	sessions, err := srv.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.EqualValues(t, 0, sessions[0].ID)
	assert.Equal(t, model.StateRunning, sessions[0].State)
	assert.Equal(t, model.RecordingPath(srv.Config().EncodeDir, 0), sessions[0].Sink.FilePath)

	assert.ErrorIs(t, srv.Record(ctx, 0, "https://example.com"), model.ErrConflict)
	require.NoError(t, srv.Navigate(ctx, 0, "https://example.org"))
	require.NoError(t, srv.Stop(ctx, 0))
	assert.ErrorIs(t, srv.Stop(ctx, 0), model.ErrNotFound)

	assert.Contains(t, launcher.Journal.Entries(), "launch encode")
	assert.Contains(t, launcher.Journal.Entries(), "navigate https://example.org")
	require.NoError(t, srv.Shutdown(ctx))
}

func TestService_SessionConfig(t *testing.T) {
	srv, _ := newTestService(t, func(cfg *tapedeck.Config) {
		cfg.Session.Preview = true
		cfg.Session.FrameSize = model.FrameSize{Width: 800, Height: 600}
	})
	cfg := srv.SessionConfig(7, "https://example.com")
	assert.EqualValues(t, 7, cfg.ID)
	assert.True(t, cfg.PreviewEnabled)
	assert.Equal(t, model.FrameSize{Width: 800, Height: 600}, cfg.FrameSize)
	assert.Equal(t, filepath.Join(srv.Config().EncodeDir, "recording-7.mp4"), cfg.Sink.FilePath)
	assert.NoError(t, cfg.Validate())
}

func TestService_Handler(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer srv.Shutdown(ctx)

	server := httptest.NewServer(srv.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/stop?id=3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestService_PreflightFailure(t *testing.T) {
	srv, _ := newTestService(t, func(cfg *tapedeck.Config) {
		cfg.Preflight = true
		cfg.Binaries.Xvfb = "tapedeck-missing-xvfb"
	})
	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Xvfb")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := tapedeck.DefaultConfig()
	cfg.EncodeDir = ""
	_, err := tapedeck.New(cfg)
	assert.Error(t, err)
}

// TestService_RecordEndToEnd drives the real launcher and needs dbus, Xvfb,
// pulseaudio, gstreamer and chrome installed. Run with TAPEDECK_E2E=1.
func TestService_RecordEndToEnd(t *testing.T) {
	if os.Getenv("TAPEDECK_E2E") != "1" {
		t.Skip("set TAPEDECK_E2E=1 to run")
	}
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body style="background:#c33"><h1>tapedeck</h1></body></html>`))
	}))
	defer page.Close()

	cfg := tapedeck.DefaultConfig()
	cfg.EncodeDir = filepath.Join(t.TempDir(), "recordings")
	cfg.Preflight = true
	cfg.Session.FrameSize = model.FrameSize{Width: 640, Height: 480}
	srv, err := tapedeck.New(cfg, tapedeck.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	ctx := context.Background()
	if err = srv.Start(ctx); err != nil {
		t.Skipf("environment not ready: %v", err)
	}
	defer srv.Shutdown(ctx)

	require.NoError(t, srv.Spawn(ctx, srv.SessionConfig(1, page.URL)))
	time.Sleep(3 * time.Second)
	require.NoError(t, srv.Stop(ctx, 1))

	var options []recording.Option
	ffprobe, lookErr := exec.LookPath("ffprobe")
	if lookErr == nil {
		options = append(options, recording.WithProbe(ffprobe))
	}
	location := model.RecordingPath(cfg.EncodeDir, 1)
	assert.Equal(t, filepath.Join(cfg.EncodeDir, "recording-1.mp4"), location)
	report, err := recording.New(options...).Verify(ctx, location)
	require.NoError(t, err)
	assert.Greater(t, report.Size, int64(0))
	if lookErr == nil {
		// a finalized mp4 has a readable moov atom
		assert.Contains(t, report.Format, "mp4")
		assert.Greater(t, report.Duration, 1.0)
	}
}
