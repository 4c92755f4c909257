package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// AppiumConfig holds the automation backend settings shared by every
// driver session.
type AppiumConfig struct {
	ServerURL   string
	DeviceName  string
	ElementWait time.Duration
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Appium       AppiumConfig
	Notification NotificationConfig

	Mode          string
	StateDir      string
	UseUTC        bool
	ShutdownGrace time.Duration
}

const (
	defaultAddr          = "0.0.0.0:8080"
	defaultLogLevel      = "info"
	defaultAppiumURL     = "http://localhost:4723/wd/hub"
	defaultDeviceName    = "Android Device"
	defaultElementWait   = 10 * time.Second
	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > environment variables > .env file > defaults.
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "socialcron", ".env"))
	}
	_ = godotenv.Load(envFiles...) // optional

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("SOCIALCRON_ADDR", defaultAddr),
			AuthToken: getEnvString("SOCIALCRON_AUTH_TOKEN", ""),
		},
		Log: LogConfig{
			Level: getEnvString("SOCIALCRON_LOG_LEVEL", defaultLogLevel),
		},
		Appium: AppiumConfig{
			ServerURL:   getEnvString("SOCIALCRON_APPIUM_URL", defaultAppiumURL),
			DeviceName:  getEnvString("SOCIALCRON_DEVICE_NAME", defaultDeviceName),
			ElementWait: getEnvDuration("SOCIALCRON_ELEMENT_WAIT", defaultElementWait),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("SOCIALCRON_BARK_URL", ""),
				Enabled: getEnvBool("SOCIALCRON_BARK_ENABLED", false),
			},
		},
		Mode:          getEnvString("SOCIALCRON_MODE", "http"),
		StateDir:      getEnvString("SOCIALCRON_STATE_DIR", ""),
		UseUTC:        getEnvBool("SOCIALCRON_USE_UTC", false),
		ShutdownGrace: getEnvDuration("SOCIALCRON_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var addr, logLevel, stateDir, appiumURL, deviceName, mode string
	var useUTC bool
	var shutdownGrace time.Duration

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the database")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&appiumURL, "appium-url", "", "Automation backend endpoint")
	flag.StringVar(&deviceName, "device-name", "", "Device the automation sessions attach to")
	flag.StringVar(&mode, "mode", "", "Serve mode: http, mcp or both")
	flag.BoolVar(&useUTC, "use-utc", false, "Evaluate recurrence expressions in UTC instead of local time")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if appiumURL != "" {
		cfg.Appium.ServerURL = appiumURL
	}
	if deviceName != "" {
		cfg.Appium.DeviceName = deviceName
	}
	if mode != "" {
		cfg.Mode = mode
	}
	// Bool and duration flags only override when explicitly set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "use-utc":
			cfg.UseUTC = useUTC
		case "shutdown-grace":
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}
	if cfg.Appium.ElementWait <= 0 {
		cfg.Appium.ElementWait = defaultElementWait
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "socialcron")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
