package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

// Settings is the runtime configuration of the station. Zero durations for
// HomeTimeout and IdleTimeout mean "wait forever".
type Settings struct {
	Port        string
	Driver      string
	BaudRate    int
	ReadTimeout time.Duration

	BufferSize  int
	BannerLines int
	BootSettle  time.Duration

	HomeTimeout time.Duration
	IdleTimeout time.Duration
	HomeEachJob bool

	PollInterval   time.Duration
	SimulatedDelay time.Duration

	WatchDir      string
	WatchInterval time.Duration
	OutputDir     string
	ConverterPath string

	HTTPAddr string
	Notify   string
	LogLevel string

	StreamFile   string
	SettingsMode bool
	Verbose      bool
}

func Default() Settings {
	return Settings{
		Driver:         DRIVER_BUGST,
		BaudRate:       BAUD_RATE,
		ReadTimeout:    READ_TIMEOUT,
		BufferSize:     RX_BUFFER_SIZE,
		BannerLines:    BOOT_BANNER_LINES,
		BootSettle:     BOOT_SETTLE,
		HomeEachJob:    true,
		PollInterval:   POLL_INTERVAL,
		SimulatedDelay: SIMULATED_DELAY,
		WatchInterval:  WATCH_INTERVAL,
		OutputDir:      "./plots",
		HTTPAddr:       SERVER_PORT,
		Notify:         "none",
		LogLevel:       "info",
	}
}

// RegisterFlags binds every setting to fs, using the current values as defaults.
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.Port, "port", s.Port, "serial port of the plotter, \"auto\" to detect, empty to simulate")
	fs.StringVar(&s.Driver, "driver", s.Driver, "serial driver: bugst or jacobsa")
	fs.IntVar(&s.BaudRate, "baud", s.BaudRate, "serial baud rate")
	fs.DurationVar(&s.ReadTimeout, "read-timeout", s.ReadTimeout, "per-read timeout on the serial link")
	fs.IntVar(&s.BufferSize, "rx-buffer", s.BufferSize, "controller receive buffer size in bytes")
	fs.IntVar(&s.BannerLines, "banner-lines", s.BannerLines, "boot banner lines discarded after open")
	fs.DurationVar(&s.BootSettle, "boot-settle", s.BootSettle, "wait after open for the controller reset")
	fs.DurationVar(&s.HomeTimeout, "home-timeout", s.HomeTimeout, "deadline for homing (0 = none)")
	fs.DurationVar(&s.IdleTimeout, "idle-timeout", s.IdleTimeout, "deadline for idle wait (0 = none)")
	fs.BoolVar(&s.HomeEachJob, "home-each-job", s.HomeEachJob, "home the machine before every job")
	fs.DurationVar(&s.PollInterval, "poll", s.PollInterval, "worker mailbox poll interval")
	fs.DurationVar(&s.SimulatedDelay, "sim-delay", s.SimulatedDelay, "simulated plot duration without a device")
	fs.StringVar(&s.WatchDir, "watch", s.WatchDir, "export directory to watch for new drawings")
	fs.DurationVar(&s.WatchInterval, "watch-interval", s.WatchInterval, "export directory poll interval")
	fs.StringVar(&s.OutputDir, "out", s.OutputDir, "directory for converted command files")
	fs.StringVar(&s.ConverterPath, "converter", s.ConverterPath, "external svg to g-code converter")
	fs.StringVar(&s.HTTPAddr, "http", s.HTTPAddr, "status server address, empty to disable")
	fs.StringVar(&s.Notify, "notify", s.Notify, "completion notifier: none, clipboard or keystroke")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "debug, info, warn or error")
	fs.StringVar(&s.StreamFile, "stream", s.StreamFile, "stream one file and exit")
	fs.BoolVar(&s.SettingsMode, "s", s.SettingsMode, "settings write mode (call/response)")
	fs.BoolVar(&s.Verbose, "v", s.Verbose, "trace every line sent and received")
}

// ApplyEnv overrides the port and driver from PLOTSTATION_PORT and
// PLOTSTATION_DRIVER when set.
func (s *Settings) ApplyEnv() {
	if v, ok := os.LookupEnv("PLOTSTATION_PORT"); ok {
		s.Port = v
	}
	if v, ok := os.LookupEnv("PLOTSTATION_DRIVER"); ok && v != "" {
		s.Driver = v
	}
}

func (s Settings) Simulated() bool {
	return s.Port == ""
}

func (s Settings) Validate() error {
	if s.Driver != DRIVER_BUGST && s.Driver != DRIVER_JACOBSA {
		return fmt.Errorf("unknown serial driver %q", s.Driver)
	}
	if s.BaudRate <= 0 {
		return errors.New("baud rate must be positive")
	}
	if s.BufferSize < 2 {
		return fmt.Errorf("rx buffer size %d too small", s.BufferSize)
	}
	if s.BannerLines < 0 {
		return errors.New("banner lines must not be negative")
	}
	if s.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if s.PollInterval <= 0 || s.WatchInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if s.HomeTimeout < 0 || s.IdleTimeout < 0 || s.SimulatedDelay < 0 {
		return errors.New("durations must not be negative")
	}
	switch s.Notify {
	case "none", "clipboard", "keystroke":
	default:
		return fmt.Errorf("unknown notifier %q", s.Notify)
	}
	if s.StreamFile != "" && s.Simulated() {
		return errors.New("-stream needs -port")
	}
	return nil
}
