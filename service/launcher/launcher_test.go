package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tapedeck/model/session"
)

func testConfig(id uint32) *session.Config {
	return &session.Config{
		ID:        id,
		FrameSize: session.FrameSize{Width: 640, Height: 480},
		TargetURL: "about:blank",
		Sink:      session.Sink{FilePath: "/tmp/recording.mp4"},
	}
}

func TestService_LaunchBus(t *testing.T) {
	testCases := []struct {
		name            string
		script          string
		expectedAddress string
		expectErr       bool
	}{
		{
			name:            "address printed",
			script:          "echo\necho 'unix:path=/tmp/dbus-test,guid=42'\nexec sleep 30",
			expectedAddress: "unix:path=/tmp/dbus-test,guid=42",
		},
		{name: "exits silently", script: "exit 1", expectErr: true},
		{name: "never prints", script: "exec sleep 30", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := testService(Binaries{DBusDaemon: writeScript(t, "dbus-daemon", tc.script)}, "")
			proc, address, err := srv.LaunchBus(context.Background(), testConfig(1))
			if tc.expectErr {
				assert.True(t, errors.Is(err, session.ErrLaunch), err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedAddress, address)
			assert.True(t, proc.Running())
			assert.NoError(t, proc.Terminate())
			assert.NoError(t, proc.Wait())
		})
	}
}

func TestService_LaunchDisplay(t *testing.T) {
	testCases := []struct {
		name      string
		script    string
		expectErr bool
	}{
		{
			name:   "socket created",
			script: `test "$DBUS_SESSION_BUS_ADDRESS" = "unix:bus" || exit 2` + "\n" + `touch "$TEST_SOCKET_DIR/X${1#:}"` + "\nexec sleep 30",
		},
		{name: "display rejected", script: "exit 1", expectErr: true},
		{name: "socket never created", script: "exec sleep 30", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			socketDir := t.TempDir()
			t.Setenv("TEST_SOCKET_DIR", socketDir)
			srv := testService(Binaries{Xvfb: writeScript(t, "Xvfb", tc.script)}, socketDir)
			proc, err := srv.LaunchDisplay(context.Background(), testConfig(42), "unix:bus")
			if tc.expectErr {
				assert.True(t, errors.Is(err, session.ErrLaunch), err)
				return
			}
			require.NoError(t, err)
			_, err = os.Stat(filepath.Join(socketDir, "X10042"))
			assert.NoError(t, err)
			assert.NoError(t, proc.Terminate())
			assert.NoError(t, proc.Wait())
		})
	}
}

func TestAudioArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-n",
		"--daemonize=false",
		"--system=false",
		"--disable-shm",
		"--use-pid-file=false",
		"--realtime=false",
		"--exit-idle-time=-1",
		"--load=module-null-sink sink_name=loopback",
		"--load=module-native-protocol-tcp port=10007 auth-anonymous=1",
	}, audioArgs(testConfig(7)))
}

const fakeGstLaunch = `trap 'echo "Got EOS from element \"pipeline0\"."; echo "Setting pipeline to NULL ..."; exit 0' INT
echo "Setting pipeline to PAUSED ..."
echo "ERROR: from element /GstPipeline:pipeline0/GstPulseSrc:pulsesrc0: transient" >&2
echo "Setting pipeline to PLAYING ..."
while true; do sleep 0.1; done`

func TestService_LaunchEncode(t *testing.T) {
	dir := t.TempDir()
	srv := testService(Binaries{GstLaunch: writeScript(t, "gst-launch-1.0", fakeGstLaunch)}, "")
	cfg := testConfig(3)
	cfg.Sink.FilePath = session.RecordingPath(filepath.Join(dir, "nested"), cfg.ID)

	pipeline, err := srv.LaunchEncode(context.Background(), cfg)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err, "recording directory created")
	assert.True(t, pipeline.Running())

	require.NoError(t, pipeline.SendEOS())
	select {
	case <-pipeline.Ended():
	case <-time.After(3 * time.Second):
		t.Fatal("end of stream not received")
	}
	select {
	case <-pipeline.Exited():
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not exit")
	}
	assert.NoError(t, pipeline.SetNull())
	assert.False(t, pipeline.Running())
}

func TestService_LaunchPreview_Failure(t *testing.T) {
	script := `echo "ERROR: pipeline could not be constructed: no element \"glimagesink\"." >&2; exit 1`
	srv := testService(Binaries{GstLaunch: writeScript(t, "gst-launch-1.0", script)}, "")
	_, err := srv.LaunchPreview(context.Background(), testConfig(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrLaunch))
	assert.Contains(t, err.Error(), "could not be constructed")
}

func TestPipeline_SetNullWithoutEOS(t *testing.T) {
	srv := testService(Binaries{GstLaunch: writeScript(t, "gst-launch-1.0", fakeGstLaunch)}, "")
	pipeline, err := srv.LaunchPreview(context.Background(), testConfig(5))
	require.NoError(t, err)
	assert.NoError(t, pipeline.SetNull())
	assert.False(t, isClosed(pipeline.Ended()))
	assert.True(t, isClosed(pipeline.Exited()))
}
