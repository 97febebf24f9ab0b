package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

const busResource = "dbus"

// LaunchBus starts a private session message bus and returns its address
func (s *Service) LaunchBus(ctx context.Context, cfg *session.Config) (resource.Process, string, error) {
	logger := s.resourceLogger(cfg.ID, busResource)
	proc := newProcess(busResource, s.config.Binaries.DBusDaemon,
		[]string{"--session", "--nofork", "--print-address=1"}, nil, s.config.StopGracePeriod, logger)
	stdout, err := proc.pipeStdout()
	if err != nil {
		return nil, "", session.NewLaunchError(busResource, err)
	}
	if err = proc.start(); err != nil {
		_ = stdout.Close()
		return nil, "", session.NewLaunchError(busResource, err)
	}
	address, err := readAddress(ctx, proc, stdout, s.config.StartTimeout)
	if err != nil {
		_ = proc.Terminate()
		_ = proc.Wait()
		return nil, "", session.NewLaunchError(busResource, err)
	}
	logger.Debug("bus ready", "address", address)
	return proc, address, nil
}

// readAddress returns the first non-empty stdout line; the rest of the
// output is drained so the daemon never blocks on a full pipe
func readAddress(ctx context.Context, proc *Process, stdout io.ReadCloser, timeout time.Duration) (string, error) {
	lines := make(chan string, 1)
	go func() {
		defer stdout.Close()
		scanner := bufio.NewScanner(stdout)
		sent := false
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if sent || line == "" {
				continue
			}
			sent = true
			lines <- line
		}
		close(lines)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line, ok := <-lines:
		if !ok {
			return "", proc.earlyExitError()
		}
		return line, nil
	case <-timer.C:
		return "", fmt.Errorf("bus address not printed within %v", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
