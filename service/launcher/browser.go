package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

const browserResource = "browser"

// Browser is a chrome instance rendering on the session display
type Browser struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
	closeOnce   sync.Once
	closeErr    error
}

var _ resource.Browser = (*Browser)(nil)

// LaunchBrowser starts chrome on the session display, audio routed to the loopback sink,
// and waits until the target url finished loading
func (s *Service) LaunchBrowser(ctx context.Context, cfg *session.Config, busAddress string) (resource.Browser, error) {
	logger := s.resourceLogger(cfg.ID, browserResource)
	// the browser outlives the launch request, only its own Close ends it
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), s.browserOptions(cfg, busAddress)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	ret := &Browser{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		timeout:     s.config.NavigationTimeout,
		logger:      logger,
	}
	if err := chromedp.Run(tabCtx); err != nil {
		_ = ret.Close()
		return nil, session.NewLaunchError(browserResource, err)
	}
	logger.Debug("browser started", "pid", ret.Pid())
	if err := ret.navigate(ctx, cfg.TargetURL); err != nil {
		_ = ret.Close()
		return nil, session.NewLaunchError(browserResource, err)
	}
	return ret, nil
}

func (s *Service) browserOptions(cfg *session.Config, busAddress string) []chromedp.ExecAllocatorOption {
	env := BusEnv(busAddress).Merge(Env{
		"DISPLAY":      cfg.Display(),
		"PULSE_SERVER": cfg.AudioServer(),
		"PULSE_SINK":   session.LoopbackSink,
	})
	options := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("mute-audio", false),
		chromedp.NoSandbox,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(int(cfg.FrameSize.Width), int(cfg.FrameSize.Height)),
		chromedp.Flag("kiosk", true),
		chromedp.Flag("start-fullscreen", true),
		chromedp.Flag("enable-audio-output", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Env(env.Pairs()...),
	)
	if s.config.Binaries.Chrome != "" {
		options = append(options, chromedp.ExecPath(s.config.Binaries.Chrome))
	}
	return options
}

// Navigate loads url in the tab and waits for the page load
func (b *Browser) Navigate(url string) error {
	return b.navigate(context.Background(), url)
}

func (b *Browser) navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(b.tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %v: %v", session.ErrNavigation, url, err)
	}
	b.logger.Debug("page loaded", "url", url)
	return nil
}

// Pid returns the browser process id or 0 once closed
func (b *Browser) Pid() int {
	c := chromedp.FromContext(b.tabCtx)
	if c == nil || c.Browser == nil {
		return 0
	}
	if proc := c.Browser.Process(); proc != nil {
		return proc.Pid
	}
	return 0
}

// Running reports whether the browser process is still alive
func (b *Browser) Running() bool {
	if b.tabCtx.Err() != nil {
		return false
	}
	pid := b.Pid()
	if pid == 0 {
		return false
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := proc.IsRunning()
	return err == nil && running
}

// Close closes the tab and terminates the browser process
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		alive := b.tabCtx.Err() == nil
		if err := chromedp.Cancel(b.tabCtx); err != nil && alive && !errors.Is(err, context.Canceled) {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		b.tabCancel()
		b.allocCancel()
	})
	return b.closeErr
}
