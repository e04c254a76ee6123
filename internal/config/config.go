// Package config loads daemon configuration from defaults, an optional YAML
// file, BUTTON_SENSOR_* environment variables, and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/mqtt"
)

const (
	envPrefix  = "BUTTON_SENSOR"
	configType = "yaml"

	keyDriver            = "gpio.driver"
	keyChip              = "gpio.chip"
	keyPin               = "gpio.pin"
	keyPoll              = "poll"
	keyDebounceThreshold = "debounce.threshold"
	keyTrackHold         = "debounce.track_hold"
	keyHoldThreshold     = "hold.threshold"
	keyBroker            = "mqtt.broker"
	keyName              = "mqtt.name"
	keyBufferSize        = "mqtt.buffer"
	keyHeartbeat         = "heartbeat"
	keyHTTP              = "http"

	defaultPoll       = 10 * time.Millisecond
	defaultBroker     = "tcp://192.168.1.200:1883"
	defaultBufferSize = 100
	defaultHeartbeat  = 15 * time.Minute
	defaultHTTP       = ":80"
)

// Config is the resolved daemon configuration.
type Config struct {
	Driver gpio.Driver
	Chip   string
	Pin    int
	Poll   time.Duration

	Button        button.Config
	HoldThreshold uint8

	Broker     string
	Name       string
	BufferSize int
	Heartbeat  time.Duration
	HTTPAddr   string

	ConfigFile string
	PrintState bool
	Verbose    bool
}

// Reloadable holds the settings that can change while the daemon runs.
// The debounce threshold is fixed once the button is built.
type Reloadable struct {
	HoldThreshold uint8
	Heartbeat     time.Duration
}

// Loader owns the viper instance and flag set.
type Loader struct {
	v      *viper.Viper
	fs     *pflag.FlagSet
	logger *zap.SugaredLogger

	mu       sync.Mutex
	watching bool
}

// NewLoader creates a Loader with defaults and flags registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := button.DefaultConfig()
	v.SetDefault(keyDriver, string(gpio.DefaultDriver))
	v.SetDefault(keyChip, gpio.DefaultChip)
	v.SetDefault(keyPin, gpio.DefaultPin)
	v.SetDefault(keyPoll, defaultPoll)
	v.SetDefault(keyTrackHold, defaults.TrackHold)
	v.SetDefault(keyHoldThreshold, button.DefaultHoldThreshold)
	v.SetDefault(keyBroker, defaultBroker)
	v.SetDefault(keyName, mqtt.DefaultName)
	v.SetDefault(keyBufferSize, defaultBufferSize)
	v.SetDefault(keyHeartbeat, defaultHeartbeat)
	v.SetDefault(keyHTTP, defaultHTTP)

	fs := pflag.NewFlagSet("button-sensor", pflag.ContinueOnError)
	fs.String("config", "", "Path to YAML config file")
	fs.String("driver", string(gpio.DefaultDriver), "GPIO backend (gpiocdev, periph, rpio)")
	fs.String("chip", gpio.DefaultChip, "GPIO chip (gpiocdev only)")
	fs.Int("pin", gpio.DefaultPin, "BCM pin number of the button")
	fs.Duration("poll", defaultPoll, "GPIO polling interval")
	fs.Int("debounce", 0, fmt.Sprintf("Debounce threshold in poll ticks (default %d, or %d without hold tracking)",
		defaults.Threshold, button.SimpleConfig().Threshold))
	fs.Bool("track-hold", defaults.TrackHold, "Track hold duration")
	fs.Int("hold", button.DefaultHoldThreshold, "Hold threshold in poll ticks")
	fs.String("broker", defaultBroker, "MQTT broker address")
	fs.String("name", mqtt.DefaultName, "Button name used in MQTT topics")
	fs.Duration("heartbeat", defaultHeartbeat, "Heartbeat interval (0 to disable)")
	fs.String("http", defaultHTTP, "HTTP status address (empty to disable)")
	fs.Bool("print-state", false, "Print current button state and exit")
	fs.BoolP("verbose", "v", false, "Enable debug logging")

	for key, flag := range map[string]string{
		keyDriver:            "driver",
		keyChip:              "chip",
		keyPin:               "pin",
		keyPoll:              "poll",
		keyDebounceThreshold: "debounce",
		keyTrackHold:         "track-hold",
		keyHoldThreshold:     "hold",
		keyBroker:            "broker",
		keyName:              "name",
		keyHeartbeat:         "heartbeat",
		keyHTTP:              "http",
	} {
		// Only fails for a nil flag, which would be a typo above.
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("config: bind %s: %v", key, err))
		}
	}

	return &Loader{v: v, fs: fs, logger: zap.NewNop().Sugar()}
}

// Parse parses command-line arguments and reads the config file, if any.
func (l *Loader) Parse(args []string) error {
	if err := l.fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	path, _ := l.fs.GetString("config")
	if path == "" {
		return nil
	}

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Verbose reports whether --verbose was given. Valid after Parse.
func (l *Loader) Verbose() bool {
	v, _ := l.fs.GetBool("verbose")
	return v
}

// SetLogger sets the logger used for validation warnings and reloads.
func (l *Loader) SetLogger(logger *zap.SugaredLogger) {
	l.logger = logger.Named("config")
}

// Load resolves the configuration. Out-of-range values fall back to their
// defaults with a warning; an invalid debounce threshold is an error.
func (l *Loader) Load() (Config, error) {
	cfg := Config{
		Chip:       l.v.GetString(keyChip),
		Broker:     l.v.GetString(keyBroker),
		HTTPAddr:   l.v.GetString(keyHTTP),
		ConfigFile: l.v.ConfigFileUsed(),
	}
	cfg.PrintState, _ = l.fs.GetBool("print-state")
	cfg.Verbose = l.Verbose()

	driver, err := gpio.ParseDriver(l.v.GetString(keyDriver))
	if err != nil {
		l.logger.Warnw("Invalid GPIO driver specified, using default value",
			"key", keyDriver,
			"invalidValue", l.v.GetString(keyDriver),
			"defaultValue", gpio.DefaultDriver)
		driver = gpio.DefaultDriver
	}
	cfg.Driver = driver

	cfg.Pin = l.v.GetInt(keyPin)
	if cfg.Pin < 0 {
		l.logger.Warnw("Invalid pin specified, using default value",
			"key", keyPin,
			"invalidValue", cfg.Pin,
			"defaultValue", gpio.DefaultPin)
		cfg.Pin = gpio.DefaultPin
	}

	cfg.Poll = l.v.GetDuration(keyPoll)
	if cfg.Poll <= 0 {
		l.logger.Warnw("Invalid poll interval specified, using default value",
			"key", keyPoll,
			"invalidValue", cfg.Poll,
			"defaultValue", defaultPoll)
		cfg.Poll = defaultPoll
	}

	trackHold := l.v.GetBool(keyTrackHold)
	threshold := int(variantDefaults(trackHold).Threshold)
	if l.v.IsSet(keyDebounceThreshold) {
		threshold = l.v.GetInt(keyDebounceThreshold)
	}
	if threshold < 0 || threshold > 255 {
		return Config{}, fmt.Errorf("%s: %d out of range [%d, 255]", keyDebounceThreshold, threshold, button.MinThreshold)
	}
	cfg.Button = button.Config{
		Threshold: uint8(threshold),
		TrackHold: trackHold,
	}
	if err := cfg.Button.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", keyDebounceThreshold, err)
	}

	cfg.Name = l.v.GetString(keyName)
	if cfg.Name == "" || strings.ContainsAny(cfg.Name, "/+#") {
		l.logger.Warnw("Invalid button name specified, using default value",
			"key", keyName,
			"invalidValue", cfg.Name,
			"defaultValue", mqtt.DefaultName)
		cfg.Name = mqtt.DefaultName
	}

	cfg.BufferSize = l.v.GetInt(keyBufferSize)
	if cfg.BufferSize <= 0 {
		l.logger.Warnw("Invalid MQTT buffer size specified, using default value",
			"key", keyBufferSize,
			"invalidValue", cfg.BufferSize,
			"defaultValue", defaultBufferSize)
		cfg.BufferSize = defaultBufferSize
	}

	r := l.reloadable()
	cfg.HoldThreshold = r.HoldThreshold
	cfg.Heartbeat = r.Heartbeat

	l.logger.Infow("Config values",
		"file", cfg.ConfigFile,
		"driver", cfg.Driver,
		"pin", cfg.Pin,
		"poll", cfg.Poll,
		"debounceThreshold", cfg.Button.Threshold,
		"trackHold", cfg.Button.TrackHold,
		"holdThreshold", cfg.HoldThreshold,
		"broker", cfg.Broker,
		"name", cfg.Name,
		"heartbeat", cfg.Heartbeat,
		"http", cfg.HTTPAddr)

	return cfg, nil
}

// variantDefaults returns the button defaults for the chosen variant.
func variantDefaults(trackHold bool) button.Config {
	if trackHold {
		return button.DefaultConfig()
	}
	return button.SimpleConfig()
}

func (l *Loader) reloadable() Reloadable {
	var r Reloadable

	hold := l.v.GetInt(keyHoldThreshold)
	if hold < 0 || hold > 255 {
		l.logger.Warnw("Invalid hold threshold specified, using default value",
			"key", keyHoldThreshold,
			"invalidValue", hold,
			"defaultValue", button.DefaultHoldThreshold)
		hold = button.DefaultHoldThreshold
	}
	r.HoldThreshold = uint8(hold)

	r.Heartbeat = l.v.GetDuration(keyHeartbeat)
	if r.Heartbeat < 0 {
		l.logger.Warnw("Invalid heartbeat specified, using default value",
			"key", keyHeartbeat,
			"invalidValue", r.Heartbeat,
			"defaultValue", defaultHeartbeat)
		r.Heartbeat = defaultHeartbeat
	}

	return r
}

// Watch starts watching the config file and sends the reloadable settings
// after every successful re-read. The channel holds only the latest value.
// Returns nil when no config file is in use.
func (l *Loader) Watch() <-chan Reloadable {
	if l.v.ConfigFileUsed() == "" {
		return nil
	}

	ch := make(chan Reloadable, 1)

	l.mu.Lock()
	l.watching = true
	l.mu.Unlock()

	l.logger.Debugw("Starting to watch config file for changes", "path", l.v.ConfigFileUsed())

	l.v.OnConfigChange(func(event fsnotify.Event) {
		l.mu.Lock()
		watching := l.watching
		l.mu.Unlock()
		if !watching || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		r := l.reloadable()
		l.logger.Infow("Reloaded config", "holdThreshold", r.HoldThreshold, "heartbeat", r.Heartbeat)

		// keep only the newest value
		select {
		case <-ch:
		default:
		}
		ch <- r
	})
	l.v.WatchConfig()

	return ch
}

// StopWatching stops delivering reloads. The underlying file watcher keeps
// running until the process exits.
func (l *Loader) StopWatching() {
	l.mu.Lock()
	l.watching = false
	l.mu.Unlock()
	l.logger.Debug("Stopped watching config file")
}
