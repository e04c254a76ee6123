// Command button-sensor polls a debounced push button and publishes click,
// hold, and release actions to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/host"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

func main() {
	loader := config.NewLoader()
	if err := loader.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(loader.Verbose())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	loader.SetLogger(logger)

	cfg, err := loader.Load()
	if err == nil {
		err = run(cfg, loader, logger)
	}
	if err != nil {
		logger.Errorw("Fatal error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// newLogger builds a production JSON logger, or a development console
// logger at debug level when verbose is set.
func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if verbose {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run(cfg config.Config, loader *config.Loader, logger *zap.SugaredLogger) error {
	reader, err := gpio.Open(cfg.Driver, cfg.Chip, cfg.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if cfg.PrintState {
		pressed, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("Button (pin %d): %s\n", cfg.Pin, stateString(pressed))
		return nil
	}

	btn, err := button.New(cfg.Button)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.Broker,
		Name:       cfg.Name,
		BufferSize: cfg.BufferSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	sampler := host.NewSampler()
	sampleHost(sampler, tracker, logger)
	tracker.SetMQTTConnected(publisher.IsConnected())
	tracker.SetMQTTQueue(publisher.Buffered(), publisher.Dropped())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warnw("Failed to publish startup event", "error", err)
	} else {
		logger.Info("Published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("HTTP server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		logger.Infow("HTTP status server listening", "addr", cfg.HTTPAddr)
	}

	notifier := host.NewNotifier()
	if ok, err := notifier.Ready(); err != nil {
		logger.Warnw("Failed to notify systemd", "error", err)
	} else if ok {
		_, _ = notifier.Status(fmt.Sprintf("polling pin %d every %v", cfg.Pin, cfg.Poll))
		logger.Debug("Notified systemd of readiness")
	}
	defer func() {
		if _, err := notifier.Stopping(); err != nil {
			logger.Warnw("Failed to notify systemd", "error", err)
		}
	}()

	reload := loader.Watch()
	defer loader.StopWatching()

	logger.Infow("Started",
		"driver", cfg.Driver,
		"pin", cfg.Pin,
		"poll", cfg.Poll,
		"debounceThreshold", cfg.Button.Threshold,
		"trackHold", cfg.Button.TrackHold,
		"holdThreshold", cfg.HoldThreshold,
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopOptions{
		reader:        reader,
		publisher:     publisher,
		mqttStatus:    publisher,
		mqttQueue:     publisher,
		tracker:       tracker,
		sampler:       sampler,
		button:        btn,
		holdThreshold: cfg.HoldThreshold,
		heartbeat:     cfg.Heartbeat,
		logger:        logger,
		now:           time.Now,
	}, ticker.C, sigCh, reload)
}

// hostSampler is satisfied by *host.Sampler.
type hostSampler interface {
	Sample(ctx context.Context) (host.Usage, error)
}

type loopOptions struct {
	reader     gpio.Reader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	mqttQueue  mqtt.QueueStats       // optional
	tracker    *status.Tracker       // optional
	sampler    hostSampler           // optional

	button        *button.Button
	holdThreshold uint8
	heartbeat     time.Duration

	logger *zap.SugaredLogger
	now    func() time.Time
}

// runLoop polls the reader once per tick until a signal arrives.
// Read and publish errors are logged and the loop carries on.
func runLoop(o loopOptions, tick <-chan time.Time, sig <-chan os.Signal, reload <-chan config.Reloadable) error {
	logger := o.logger.Named("loop")
	detector := logic.NewDetector(o.button, o.holdThreshold, o.now())
	heartbeat := o.heartbeat
	readErrors := 0

	for {
		select {
		case s := <-sig:
			signalName := signalString(s)
			logger.Infow("Received signal, shutting down", "signal", signalName)
			event := mqtt.SystemEvent{
				Timestamp: o.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if o.tracker != nil {
				refreshTracker(o, detector)
				snap := o.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := o.publisher.PublishSystem(event); err != nil {
				logger.Warnw("Failed to publish shutdown event", "error", err)
			} else {
				logger.Info("Published shutdown event")
			}
			return nil

		case r := <-reload:
			detector.SetHoldThreshold(r.HoldThreshold)
			heartbeat = r.Heartbeat
			if o.tracker != nil {
				o.tracker.SetHoldThreshold(r.HoldThreshold)
				o.tracker.SetHeartbeat(r.Heartbeat)
			}
			logger.Infow("Applied config reload", "holdThreshold", r.HoldThreshold, "heartbeat", r.Heartbeat)

		case <-tick:
			t := o.now()
			pressed, err := o.reader.Read()
			if err != nil {
				// log the first failure of a run, then every 100th
				if readErrors%100 == 0 {
					logger.Warnw("GPIO read error", "error", err, "consecutive", readErrors+1)
				}
				readErrors++
				continue
			}
			if readErrors > 0 {
				logger.Infow("GPIO read recovered", "failedReads", readErrors)
				readErrors = 0
			}

			events := detector.Process(logic.Input{Pressed: pressed, Time: t})
			for _, event := range events {
				logger.Infow("Button event",
					"event", event.Type,
					"state", event.State,
					"holdTicks", event.HoldTicks,
					"pressTicks", event.PressTicks,
					"held", event.Held)
				if err := o.publisher.Publish(event); err != nil {
					logger.Warnw("Publish error", "event", event.Type, "error", err)
				}
			}

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				logger.Infow("Heartbeat",
					"uptime", hb.Uptime,
					"ticks", hb.Ticks,
					"clicks", hb.Counts.Click,
					"holds", hb.Counts.Hold,
					"releases", hb.Counts.Release)
				if o.mqttQueue != nil {
					logger.Infow("MQTT offline queue",
						"buffered", o.mqttQueue.Buffered(),
						"dropped", o.mqttQueue.Dropped())
				}

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if o.tracker != nil {
					if net := readNetworkInfo(); net != nil {
						o.tracker.SetNetwork(net)
					}
					sampleHost(o.sampler, o.tracker, logger)
					refreshTracker(o, detector)
					hbEvent.RawPayload = status.FormatStatusEvent(o.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := o.publisher.PublishSystem(hbEvent); err != nil {
					logger.Warnw("Heartbeat publish error", "error", err)
				}
			}

			if o.tracker != nil {
				refreshTracker(o, detector)
			}
		}
	}
}

func refreshTracker(o loopOptions, d *logic.Detector) {
	o.tracker.Update(status.ButtonState{
		State:     d.CurrentState(),
		Phase:     d.Phase(),
		HoldTicks: d.HoldTicks(),
		Ready:     d.Ready(),
		Ticks:     d.Ticks(),
		Counts:    d.EventCountsSnapshot(),
	})
	if o.mqttStatus != nil {
		o.tracker.SetMQTTConnected(o.mqttStatus.IsConnected())
	}
	if o.mqttQueue != nil {
		o.tracker.SetMQTTQueue(o.mqttQueue.Buffered(), o.mqttQueue.Dropped())
	}
}

func sampleHost(s hostSampler, tracker *status.Tracker, logger *zap.SugaredLogger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := s.Sample(ctx)
	if err != nil {
		logger.Debugw("Host sample failed", "error", err)
		return
	}
	tracker.SetHost(&status.HostInfo{CPUPercent: u.CPUPercent, MemPercent: u.MemPercent})
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Name:              cfg.Name,
		Driver:            string(cfg.Driver),
		Pin:               cfg.Pin,
		PollMs:            cfg.Poll.Milliseconds(),
		DebounceThreshold: cfg.Button.Threshold,
		TrackHold:         cfg.Button.TrackHold,
		HoldThreshold:     cfg.HoldThreshold,
		HeartbeatMs:       cfg.Heartbeat.Milliseconds(),
		Broker:            cfg.Broker,
		HTTPAddr:          cfg.HTTPAddr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func signalString(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func stateString(pressed bool) string {
	if pressed {
		return string(logic.StatePressed)
	}
	return string(logic.StateReleased)
}
