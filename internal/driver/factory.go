package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"socialcron/internal/core"
)

const defaultWaitTimeout = 10 * time.Second

// Config holds the launch parameters shared by every automation session.
type Config struct {
	// ServerURL is the automation backend endpoint, e.g.
	// http://localhost:4723/wd/hub.
	ServerURL string
	// DeviceName names the device or emulator the sessions attach to.
	DeviceName string
	// WaitTimeout bounds each element wait. Zero means the default 10s.
	WaitTimeout time.Duration
}

// Factory creates platform-bound automation sessions against a single
// Appium backend. It implements core.DriverFactory.
type Factory struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewFactory constructs a driver factory.
func NewFactory(cfg Config, logger *slog.Logger) *Factory {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	return &Factory{
		cfg: cfg,
		// No overall client timeout: individual commands are bounded by
		// their request contexts and the element wait.
		client: &http.Client{},
		logger: logger,
	}
}

// Create establishes a new session bound to the platform's application.
// It fails explicitly when the backend is unreachable.
func (f *Factory) Create(ctx context.Context, platform core.Platform) (core.Driver, error) {
	capabilities, err := capabilitiesFor(f.cfg, platform)
	if err != nil {
		return nil, err
	}
	sess, err := newSession(ctx, f.client, f.cfg.ServerURL, capabilities, f.cfg.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect automation backend: %w", err)
	}
	f.logger.Debug("automation session created", "platform", platform)
	switch platform {
	case core.PlatformReddit:
		return &redditDriver{sess: sess, logger: f.logger}, nil
	case core.PlatformTwitter:
		return &twitterDriver{sess: sess, logger: f.logger}, nil
	default:
		// Unreachable: capabilitiesFor rejects unknown platforms.
		_ = sess.close()
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
}

// capabilitiesFor builds the desired capabilities for the platform's app.
func capabilitiesFor(cfg Config, platform core.Platform) (map[string]any, error) {
	deviceName := cfg.DeviceName
	if deviceName == "" {
		deviceName = "Android Device"
	}
	capabilities := map[string]any{
		"platformName":      "Android",
		"automationName":    "UiAutomator2",
		"deviceName":        deviceName,
		"noReset":           true,
		"newCommandTimeout": 3600,
	}
	switch platform {
	case core.PlatformReddit:
		capabilities["appPackage"] = "com.reddit.frontpage"
		capabilities["appActivity"] = "com.reddit.launch.MainActivity"
	case core.PlatformTwitter:
		capabilities["appPackage"] = "com.twitter.android"
		capabilities["appActivity"] = "com.twitter.android.StartActivity"
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return capabilities, nil
}
