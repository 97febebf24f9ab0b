package launcher

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

const audioResource = "audio"

// LaunchAudio starts a sound server with a null sink reachable over TCP
func (s *Service) LaunchAudio(ctx context.Context, cfg *session.Config, busAddress string) (resource.Process, error) {
	logger := s.resourceLogger(cfg.ID, audioResource)
	proc := newProcess(audioResource, s.config.Binaries.PulseAudio, audioArgs(cfg), BusEnv(busAddress), s.config.StopGracePeriod, logger)
	if err := proc.start(); err != nil {
		return nil, session.NewLaunchError(audioResource, err)
	}
	address := net.JoinHostPort("localhost", fmt.Sprint(cfg.AudioPort()))
	err := waitReady(ctx, proc, s.config.StartTimeout, func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: 200 * time.Millisecond}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	})
	if err != nil {
		_ = proc.Terminate()
		_ = proc.Wait()
		return nil, session.NewLaunchError(audioResource, err)
	}
	logger.Debug("audio ready", "server", cfg.AudioServer())
	return proc, nil
}

// audioArgs keeps every module load in a single argument, the daemon parses it itself.
// Anonymous auth is limited to the session port on localhost.
func audioArgs(cfg *session.Config) []string {
	return []string{
		"-n",
		"--daemonize=false",
		"--system=false",
		"--disable-shm",
		"--use-pid-file=false",
		"--realtime=false",
		"--exit-idle-time=-1",
		"--load=module-null-sink sink_name=" + session.LoopbackSink,
		fmt.Sprintf("--load=module-native-protocol-tcp port=%d auth-anonymous=1", cfg.AudioPort()),
	}
}
