package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tapedeck/internal/fake"
	model "github.com/viant/tapedeck/model/session"
)

func testConfig(id uint32, preview bool) *model.Config {
	return &model.Config{
		ID:             id,
		FrameSize:      model.FrameSize{Width: 1280, Height: 720},
		TargetURL:      "https://example.com/",
		PreviewEnabled: preview,
		Sink:           model.Sink{FilePath: model.RecordingPath("/tmp/tapedeck", id)},
	}
}

func testLogger() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStart(t *testing.T) {
	testCases := []struct {
		name     string
		preview  bool
		expected []string
	}{
		{
			name:     "with preview",
			preview:  true,
			expected: []string{"launch bus", "launch display", "launch audio", "launch browser", "launch preview", "launch encode"},
		},
		{
			name:     "without preview",
			expected: []string{"launch bus", "launch display", "launch audio", "launch browser", "launch encode"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			launcher := fake.NewLauncher()
			s, err := Start(context.Background(), testConfig(1, tc.preview), launcher, testLogger())
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tc.expected, launcher.Journal.Entries())
			assert.Equal(t, model.StateRunning, s.State())
		})
	}
}

func TestStart_InvalidConfig(t *testing.T) {
	launcher := fake.NewLauncher()
	cfg := testConfig(1, false)
	cfg.Sink = model.Sink{}
	_, err := Start(context.Background(), cfg, launcher, testLogger())
	assert.True(t, errors.Is(err, model.ErrInvalidConfig))
	assert.Empty(t, launcher.Journal.Entries())
}

func TestStart_Unwind(t *testing.T) {
	testCases := []struct {
		name     string
		failOn   string
		preview  bool
		expected []string
	}{
		{
			name:     "bus",
			failOn:   fake.NameBus,
			expected: []string{"launch bus"},
		},
		{
			name:   "display",
			failOn: fake.NameDisplay,
			expected: []string{"launch bus", "launch display",
				"terminate bus", "wait bus"},
		},
		{
			name:   "browser",
			failOn: fake.NameBrowser,
			expected: []string{"launch bus", "launch display", "launch audio", "launch browser",
				"terminate display", "wait display", "terminate audio", "wait audio", "terminate bus", "wait bus"},
		},
		{
			name:    "encode",
			failOn:  fake.NameEncode,
			preview: true,
			expected: []string{"launch bus", "launch display", "launch audio", "launch browser", "launch preview", "launch encode",
				"null preview", "close browser",
				"terminate display", "wait display", "terminate audio", "wait audio", "terminate bus", "wait bus"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			launcher := fake.NewLauncher()
			launcher.FailOn = tc.failOn
			var transitions []model.State
			s, err := Start(context.Background(), testConfig(2, tc.preview), launcher, testLogger(),
				WithTransitionListeners(func(transition *model.Transition) {
					transitions = append(transitions, transition.To)
				}))
			assert.Nil(t, s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrLaunch))
			var launchErr *model.LaunchError
			require.True(t, errors.As(err, &launchErr))
			assert.Equal(t, tc.failOn, launchErr.Resource)
			assert.Equal(t, tc.expected, launcher.Journal.Entries())
			assert.Equal(t, []model.State{model.StateStarting, model.StateFailed}, transitions)
		})
	}
}

func TestSession_Stop(t *testing.T) {
	launcher := fake.NewLauncher()
	s, err := Start(context.Background(), testConfig(3, true), launcher, testLogger())
	require.NoError(t, err)
	launcher.Journal.Reset()

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{
		"eos encode",
		"null preview", "null encode",
		"close browser",
		"terminate display", "wait display",
		"terminate audio", "wait audio",
		"terminate bus", "wait bus",
	}, launcher.Journal.Entries())
	assert.Equal(t, model.StateStopped, s.State())

	for _, name := range []string{fake.NameBus, fake.NameDisplay, fake.NameAudio} {
		assert.False(t, launcher.Handle(3, name).(*fake.Process).Running(), name)
	}
	assert.False(t, launcher.Handle(3, fake.NameBrowser).(*fake.Browser).Running())
	assert.False(t, launcher.Handle(3, fake.NameEncode).(*fake.Pipeline).Running())
	assert.False(t, launcher.Handle(3, fake.NamePreview).(*fake.Pipeline).Running())

	// repeated stop has no side effects
	launcher.Journal.Reset()
	err = s.Stop(context.Background())
	assert.True(t, errors.Is(err, model.ErrAlreadyStopped))
	assert.Empty(t, launcher.Journal.Entries())
}

func TestSession_StopDrainTimeout(t *testing.T) {
	launcher := fake.NewLauncher()
	launcher.StuckEncode = true
	s, err := Start(context.Background(), testConfig(4, false), launcher, testLogger(), WithDrainTimeout(100*time.Millisecond))
	require.NoError(t, err)
	launcher.Journal.Reset()

	started := time.Now()
	err = s.Stop(context.Background())
	assert.Less(t, time.Since(started), 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrShutdown))
	assert.True(t, errors.Is(err, model.ErrDrainTimeout))
	var shutdownErr *model.ShutdownError
	require.True(t, errors.As(err, &shutdownErr))
	assert.Equal(t, stepDrain, shutdownErr.First().Step)
	// teardown continues after the timeout
	assert.Equal(t, []string{
		"eos encode", "null encode", "close browser",
		"terminate display", "wait display", "terminate audio", "wait audio", "terminate bus", "wait bus",
	}, launcher.Journal.Entries())
}

func TestSession_StopContextCancelled(t *testing.T) {
	launcher := fake.NewLauncher()
	launcher.StuckEncode = true
	drainTimeout := 200 * time.Millisecond
	s, err := Start(context.Background(), testConfig(5, false), launcher, testLogger(), WithDrainTimeout(drainTimeout))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	started := time.Now()
	err = s.Stop(ctx)
	assert.True(t, errors.Is(err, model.ErrDrainTimeout))
	assert.Contains(t, err.Error(), "after "+drainTimeout.String())
	// the caller deadline does not shorten the end-of-stream wait
	assert.GreaterOrEqual(t, time.Since(started), drainTimeout)
	assert.Equal(t, model.StateStopped, s.State())
	assert.False(t, launcher.Handle(5, fake.NameEncode).(*fake.Pipeline).Running())
}

func TestSession_StopAndCloseConcurrently(t *testing.T) {
	for i := 0; i < 20; i++ {
		launcher := fake.NewLauncher()
		var mu sync.Mutex
		stopping := 0
		listener := func(transition *model.Transition) {
			if transition.To == model.StateStopping {
				mu.Lock()
				stopping++
				mu.Unlock()
			}
		}
		s, err := Start(context.Background(), testConfig(12, false), launcher, testLogger(), WithTransitionListeners(listener))
		require.NoError(t, err)
		launcher.Journal.Reset()

		var wg sync.WaitGroup
		var stopErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			stopErr = s.Stop(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
		wg.Wait()

		if stopErr != nil {
			assert.True(t, errors.Is(stopErr, model.ErrAlreadyStopped), stopErr)
		}
		mu.Lock()
		assert.Equal(t, 1, stopping)
		mu.Unlock()
		eos := 0
		for _, entry := range launcher.Journal.Entries() {
			if entry == "eos encode" {
				eos++
			}
		}
		assert.Equal(t, 1, eos)
		assert.Equal(t, model.StateStopped, s.State())
	}
}

func TestStart_LauncherPanic(t *testing.T) {
	launcher := fake.NewLauncher()
	launcher.Configure = func(id uint32, name string, handle interface{}) {
		if name == fake.NameEncode {
			panic("encoder crashed")
		}
	}
	s, err := Start(context.Background(), testConfig(13, false), launcher, testLogger())
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLaunch))
	assert.Contains(t, err.Error(), "encoder crashed")
	for _, name := range []string{fake.NameBus, fake.NameDisplay, fake.NameAudio} {
		assert.False(t, launcher.Handle(13, name).(*fake.Process).Running(), name)
	}
	assert.False(t, launcher.Handle(13, fake.NameBrowser).(*fake.Browser).Running())
}

func TestSession_StopPartialFailure(t *testing.T) {
	launcher := fake.NewLauncher()
	launcher.Configure = func(id uint32, name string, handle interface{}) {
		switch name {
		case fake.NameBrowser:
			handle.(*fake.Browser).CloseErr = errors.New("devtools connection lost")
		case fake.NameAudio:
			handle.(*fake.Process).TerminateErr = errors.New("operation not permitted")
		}
	}
	s, err := Start(context.Background(), testConfig(6, false), launcher, testLogger())
	require.NoError(t, err)

	err = s.Stop(context.Background())
	require.Error(t, err)
	var shutdownErr *model.ShutdownError
	require.True(t, errors.As(err, &shutdownErr))
	assert.Equal(t, stepCloseBrowser, shutdownErr.First().Step)
	require.Len(t, shutdownErr.Steps, 2)
	assert.Equal(t, stepStopAudio, shutdownErr.Steps[1].Step)
	assert.Contains(t, err.Error(), "close_browser")
	// later steps still ran
	assert.False(t, launcher.Handle(6, fake.NameBus).(*fake.Process).Running())
	assert.Equal(t, model.StateStopped, s.State())
}

func TestSession_Close(t *testing.T) {
	t.Run("releases a running session", func(t *testing.T) {
		launcher := fake.NewLauncher()
		launcher.Configure = func(id uint32, name string, handle interface{}) {
			if name == fake.NameDisplay {
				handle.(*fake.Process).WaitErr = errors.New("exit status 1")
			}
		}
		s, err := Start(context.Background(), testConfig(7, false), launcher, testLogger())
		require.NoError(t, err)
		s.Close()
		assert.Equal(t, model.StateStopped, s.State())
		assert.False(t, launcher.Handle(7, fake.NameBus).(*fake.Process).Running())
		err = s.Stop(context.Background())
		assert.True(t, errors.Is(err, model.ErrAlreadyStopped))
	})
	t.Run("no-op after stop", func(t *testing.T) {
		launcher := fake.NewLauncher()
		s, err := Start(context.Background(), testConfig(8, false), launcher, testLogger())
		require.NoError(t, err)
		require.NoError(t, s.Stop(context.Background()))
		launcher.Journal.Reset()
		s.Close()
		s.Close()
		assert.Empty(t, launcher.Journal.Entries())
	})
}

func TestSession_Transitions(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	listener := func(transition *model.Transition) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, string(transition.From)+">"+string(transition.To))
	}
	s, err := Start(context.Background(), testConfig(9, false), fake.NewLauncher(), testLogger(), WithTransitionListeners(listener))
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{">starting", "starting>running", "running>stopping", "stopping>stopped"}, transitions)
}

func TestSession_Info(t *testing.T) {
	launcher := fake.NewLauncher()
	s, err := Start(context.Background(), testConfig(42, true), launcher, testLogger())
	require.NoError(t, err)
	info := s.Info()
	assert.EqualValues(t, 42, info.ID)
	assert.Equal(t, ":10042", info.Display)
	assert.Equal(t, "tcp:localhost:10042", info.AudioServer)
	assert.Equal(t, model.StateRunning, info.State)
	assert.False(t, info.StartedAt.IsZero())
	assert.Len(t, info.Pids, 6)
	assert.Equal(t, launcher.Handle(42, fake.NameEncode).(*fake.Pipeline).Pid(), info.Pids["encode"])

	require.NoError(t, s.Stop(context.Background()))
	info = s.Info()
	assert.Equal(t, model.StateStopped, info.State)
	assert.Empty(t, info.Pids)
}

func TestSession_Navigate(t *testing.T) {
	launcher := fake.NewLauncher()
	s, err := Start(context.Background(), testConfig(10, false), launcher, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/next"))
	assert.Equal(t, []string{"https://example.com/next"}, launcher.Handle(10, fake.NameBrowser).(*fake.Browser).URLs())

	require.NoError(t, s.Stop(context.Background()))
	err = s.Navigate(context.Background(), "https://example.com/late")
	assert.True(t, errors.Is(err, model.ErrAlreadyStopped))
}
