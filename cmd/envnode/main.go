// Command envnode samples an SHT3x temperature/humidity sensor on a wake
// cycle and publishes readings and threshold warnings to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/envnode/internal/button"
	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/i2cbus"
	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/node"
	"github.com/sweeney/envnode/internal/ota"
	"github.com/sweeney/envnode/internal/platform"
	"github.com/sweeney/envnode/internal/provision"
	"github.com/sweeney/envnode/internal/services"
	"github.com/sweeney/envnode/internal/sht3x"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/store"
	"github.com/sweeney/envnode/internal/web"
)

// version is the running firmware version, overridden at build time with
// -ldflags "-X main.version=1.2".
var version = "1.0"

type config struct {
	Broker        string
	DeviceID      string
	I2CBus        string
	Repeatability sht3x.Repeatability
	Chip          string
	Pin           int
	ActiveLow     bool
	Debounce      time.Duration
	Interval      time.Duration
	Cadence       logic.Cadence
	Thresholds    logic.Thresholds
	Bounds        logic.ModeBounds
	MaxFailures   int
	StorePath     string
	HTTPAddr      string
	Once          bool
	Wake          string
	LogLevel      zerolog.Level
	Version       ota.Version
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	setupLogging(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

func parseConfig(args []string, output io.Writer) (config, error) {
	fs := flag.NewFlagSet("envnode", flag.ContinueOnError)
	fs.SetOutput(output)

	broker := fs.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	device := fs.String("device", defaultDeviceID(), "Device id used in topics and update commands")
	bus := fs.String("i2c-bus", "", "I2C bus name (empty selects the first bus)")
	repeat := fs.String("repeatability", "high", "SHT3x repeatability: high, medium or low")
	chip := fs.String("gpio-chip", gpio.DefaultChip, "GPIO chip for the button")
	pin := fs.Int("button-pin", gpio.DefaultButtonPin, "GPIO line of the mode button (-1 disables)")
	activeLow := fs.Bool("active-low", true, "Button pulls the line low when pressed")
	debounce := fs.Duration("debounce", button.DefaultDebounce, "Button debounce window")
	interval := fs.Duration("interval", node.DefaultWakeInterval, "Timer wake interval")
	publishEvery := fs.Uint("publish-every", uint(logic.DefaultCadence.PublishEvery), "Publish telemetry every N timer wakes")
	keepAliveEvery := fs.Uint("keepalive-every", uint(logic.DefaultCadence.KeepAliveEvery), "Publish a keep-alive every N wakes (0 disables)")
	highTemp := fs.Float64("high-temp", float64(logic.DefaultThresholds.HighTemp), "High temperature warning (°C)")
	lowTemp := fs.Float64("low-temp", float64(logic.DefaultThresholds.LowTemp), "Low temperature warning (°C)")
	highHum := fs.Float64("high-humidity", float64(logic.DefaultThresholds.HighHumidity), "High humidity warning (%RH)")
	lowHum := fs.Float64("low-humidity", float64(logic.DefaultThresholds.LowHumidity), "Low humidity warning (%RH)")
	minPress := fs.Duration("min-press", logic.DefaultModeBounds.MinPress, "Shortest hold that selects provisioning")
	maxProv := fs.Duration("max-provisioning-press", logic.DefaultModeBounds.MaxProvisioning, "Longest hold that selects provisioning; longer selects firmware update")
	maxFailures := fs.Int("max-sensor-failures", 0, "Restart after N consecutive failed readings (0 disables)")
	storePath := fs.String("store", "/var/lib/envnode/state.db", "State file (empty keeps state in memory)")
	httpAddr := fs.String("http", ":80", "HTTP status address (empty to disable)")
	once := fs.Bool("once", false, "Run a single wake cycle and exit")
	wake := fs.String("wake", "timer", "Wake cause for -once: cold, timer or button")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg := config{
		Broker:      *broker,
		DeviceID:    *device,
		I2CBus:      *bus,
		Chip:        *chip,
		Pin:         *pin,
		ActiveLow:   *activeLow,
		Debounce:    *debounce,
		Interval:    *interval,
		MaxFailures: *maxFailures,
		StorePath:   *storePath,
		HTTPAddr:    *httpAddr,
		Once:        *once,
		Wake:        *wake,
		Thresholds: logic.Thresholds{
			HighTemp:     float32(*highTemp),
			LowTemp:      float32(*lowTemp),
			HighHumidity: float32(*highHum),
			LowHumidity:  float32(*lowHum),
		},
		Bounds: logic.ModeBounds{MinPress: *minPress, MaxProvisioning: *maxProv},
	}

	if *publishEvery > 255 || *keepAliveEvery > 255 {
		return config{}, fmt.Errorf("cadence periods must be at most 255")
	}
	cfg.Cadence = logic.Cadence{PublishEvery: uint8(*publishEvery), KeepAliveEvery: uint8(*keepAliveEvery)}
	if err := cfg.Cadence.Validate(); err != nil {
		return config{}, err
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return config{}, err
	}
	if cfg.Thresholds.LowTemp >= cfg.Thresholds.HighTemp || cfg.Thresholds.LowHumidity >= cfg.Thresholds.HighHumidity {
		return config{}, fmt.Errorf("low thresholds must be below high thresholds")
	}
	if cfg.Interval <= 0 {
		return config{}, fmt.Errorf("interval must be positive")
	}
	if cfg.DeviceID == "" || strings.ContainsAny(cfg.DeviceID, "/+#") {
		return config{}, fmt.Errorf("invalid device id %q", cfg.DeviceID)
	}

	r, err := parseRepeatability(*repeat)
	if err != nil {
		return config{}, err
	}
	cfg.Repeatability = r

	if _, err := platform.ParseWake(cfg.Wake, cfg.Pin); err != nil {
		return config{}, err
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return config{}, fmt.Errorf("log level: %w", err)
	}
	cfg.LogLevel = lvl

	v, err := ota.ParseVersion(version)
	if err != nil {
		return config{}, fmt.Errorf("build version: %w", err)
	}
	cfg.Version = v

	return cfg, nil
}

func parseRepeatability(s string) (sht3x.Repeatability, error) {
	switch s {
	case "high":
		return sht3x.RepeatabilityHigh, nil
	case "medium":
		return sht3x.RepeatabilityMedium, nil
	case "low":
		return sht3x.RepeatabilityLow, nil
	}
	return 0, fmt.Errorf("unknown repeatability %q", s)
}

func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func run(cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sensor
	bus, err := i2cbus.Open(cfg.I2CBus, 100*physic.KiloHertz)
	if err != nil {
		return fmt.Errorf("init i2c: %w", err)
	}
	defer bus.Close()

	sensor := sht3x.New(bus, sht3x.Config{Repeatability: cfg.Repeatability})
	if word, err := sensor.Status(); err != nil {
		log.Warn().Err(err).Str("bus", bus.String()).Msg("sensor status probe failed")
	} else {
		log.Info().Str("bus", bus.String()).Str("status", fmt.Sprintf("%#04x", word)).Msg("sensor found")
	}

	// State
	kv, err := openStore(cfg.StorePath)
	if err != nil {
		return err
	}
	defer kv.Close()

	// Button
	cause, _ := platform.ParseWake(cfg.Wake, cfg.Pin)
	sel, closeButton := openButton(cfg)
	defer closeButton()
	var modes node.ModeSource
	var wake <-chan struct{}
	if sel != nil {
		if cfg.Once && cause.Kind == logic.WakeExternal {
			sel.Seed(time.Now())
		}
		go sel.Run(ctx)
		modes = sel
		wake = sel.Wake()
	}

	// Network
	svc := services.New(func(context.Context) (services.Transport, error) {
		p, err := mqtt.NewRealPublisher(mqtt.Config{Broker: cfg.Broker, DeviceID: cfg.DeviceID})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	defer svc.Reset()

	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:       cfg.DeviceID,
		Version:        cfg.Version.String(),
		WakeIntervalMs: cfg.Interval.Milliseconds(),
		Cadence:        cfg.Cadence,
		Thresholds:     cfg.Thresholds,
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	window := provision.NewWindow(kv, provision.DefaultTimeout)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, window)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	updater := &ota.HTTPUpdater{
		Client: &http.Client{Timeout: 2 * time.Minute},
		Target: exe,
		Name:   "envnode",
	}

	var plat platform.Platform
	if cfg.Once {
		plat = platform.OneShot{Cause: cause}
	} else {
		plat = platform.NewHost(wake, cfg.Pin)
	}

	ctrl := node.New(node.Config{
		DeviceID:          cfg.DeviceID,
		Version:           cfg.Version,
		WakeInterval:      cfg.Interval,
		Cadence:           cfg.Cadence,
		Thresholds:        cfg.Thresholds,
		MaxSensorFailures: cfg.MaxFailures,
	}, node.Deps{
		Platform:    plat,
		Sensor:      sensor,
		Store:       kv,
		Services:    svc,
		Modes:       modes,
		Provisioner: window,
		Updater:     updater,
		Tracker:     tracker,
	})

	log.Info().Str("device", cfg.DeviceID).Str("version", cfg.Version.String()).
		Dur("interval", cfg.Interval).Uint8("publish_every", cfg.Cadence.PublishEvery).
		Bool("once", cfg.Once).Msg("started")

	if cfg.Once {
		err = ctrl.RunCycle(ctx)
	} else {
		err = ctrl.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		log.Warn().Msg("no store path, state will not survive restarts")
		return store.NewMemory(), nil
	}
	return store.OpenBolt(path)
}

// openButton requests the button line. A missing button is not fatal: the
// node keeps sampling without mode actions.
func openButton(cfg config) (*button.Selector, func()) {
	if cfg.Pin < 0 {
		return nil, func() {}
	}
	btn, err := gpio.NewRealButton(gpio.Config{Chip: cfg.Chip, Pin: cfg.Pin, ActiveLow: cfg.ActiveLow})
	if err != nil {
		log.Warn().Err(err).Int("pin", cfg.Pin).Msg("button unavailable, mode actions disabled")
		return nil, func() {}
	}
	sel := button.NewSelector(button.Config{Bounds: cfg.Bounds, Debounce: cfg.Debounce}, btn.Edges())
	return sel, func() {
		if n := btn.Dropped(); n > 0 {
			log.Warn().Uint32("dropped", n).Msg("button edges dropped")
		}
		btn.Close()
	}
}

func defaultDeviceID() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "envnode"
	}
	if i := strings.IndexByte(h, '.'); i > 0 {
		h = h[:i]
	}
	return h
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
