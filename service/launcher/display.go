package launcher

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

const displayResource = "display"

// LaunchDisplay starts a virtual display server sized to the session frame
func (s *Service) LaunchDisplay(ctx context.Context, cfg *session.Config, busAddress string) (resource.Process, error) {
	logger := s.resourceLogger(cfg.ID, displayResource)
	args := []string{
		cfg.Display(),
		"-screen", "0", fmt.Sprintf("%vx24", cfg.FrameSize),
		"-nolisten", "tcp",
	}
	if err := s.clearStaleDisplay(ctx, cfg); err != nil {
		return nil, session.NewLaunchError(displayResource, err)
	}
	proc := newProcess(displayResource, s.config.Binaries.Xvfb, args, BusEnv(busAddress), s.config.StopGracePeriod, logger)
	if err := proc.start(); err != nil {
		return nil, session.NewLaunchError(displayResource, err)
	}
	socket := s.displaySocket(cfg)
	err := waitReady(ctx, proc, s.config.StartTimeout, func(ctx context.Context) bool {
		ok, _ := s.fs.Exists(ctx, socket)
		return ok
	})
	if err != nil {
		_ = proc.Terminate()
		_ = proc.Wait()
		return nil, session.NewLaunchError(displayResource, err)
	}
	logger.Debug("display ready", "display", cfg.Display(), "socket", socket)
	return proc, nil
}

// displaySocket returns the X11 unix socket path, i.e. /tmp/.X11-unix/X1NNNN
func (s *Service) displaySocket(cfg *session.Config) string {
	return path.Join(s.config.X11SocketDir, "X"+cfg.DisplayNumber())
}

// displayLock returns the file the display server records its pid in, i.e. /tmp/.X1NNNN-lock
func (s *Service) displayLock(cfg *session.Config) string {
	return path.Join(path.Dir(s.config.X11SocketDir), ".X"+cfg.DisplayNumber()+"-lock")
}

// clearStaleDisplay removes the socket and lock left behind by a display
// server that died; a display still held by a live process fails the launch
func (s *Service) clearStaleDisplay(ctx context.Context, cfg *session.Config) error {
	lock := s.displayLock(cfg)
	if exists, _ := s.fs.Exists(ctx, lock); exists {
		data, err := s.fs.DownloadWithURL(ctx, lock)
		if err != nil {
			return fmt.Errorf("failed to read display lock %v: %w", lock, err)
		}
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid > 0 {
			if alive, _ := process.PidExistsWithContext(ctx, int32(pid)); alive {
				return fmt.Errorf("display %v is held by pid %d", cfg.Display(), pid)
			}
		}
		if err = s.fs.Delete(ctx, lock); err != nil {
			return fmt.Errorf("failed to remove stale display lock %v: %w", lock, err)
		}
	}
	socket := s.displaySocket(cfg)
	if exists, _ := s.fs.Exists(ctx, socket); exists {
		if err := s.fs.Delete(ctx, socket); err != nil {
			return fmt.Errorf("failed to remove stale display socket %v: %w", socket, err)
		}
		s.resourceLogger(cfg.ID, displayResource).Warn("removed stale display socket", "socket", socket)
	}
	return nil
}
