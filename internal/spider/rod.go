package spider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodLauncher starts Chromium through go-rod.
type RodLauncher struct {
	// Bin is an optional browser binary. Empty lets rod find or download one.
	Bin string
}

// Launch starts a browser with the anti-automation flags and opens one tab
// configured with opts.
func (r RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-features", "IsolateOrigins,site-per-process").
		Set("mute-audio").
		Set("disable-accelerated-2d-canvas")
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err = browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	page, err := newRodPage(browser, opts)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, err
	}

	return &rodSession{launcher: l, browser: browser, page: page}, nil
}

func newRodPage(browser *rod.Browser, opts LaunchOptions) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if opts.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: opts.Locale,
	}); err != nil {
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	if err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err = (proto.EmulationSetTimezoneOverride{TimezoneID: opts.Timezone}).Call(page); err != nil {
		return nil, fmt.Errorf("set timezone: %w", err)
	}
	if err = (proto.EmulationSetLocaleOverride{Locale: opts.Locale}).Call(page); err != nil {
		return nil, fmt.Errorf("set locale: %w", err)
	}

	return page, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.page.Context(ctx).Timeout(timeout).Navigate(url)
}

func (s *rodSession) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) BodyText(ctx context.Context) (string, error) {
	body, err := s.page.Context(ctx).Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	return err
}
