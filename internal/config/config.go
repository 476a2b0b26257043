// Package config loads relay settings from defaults, an optional YAML file,
// a .env file, RELAY_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RELAY_DEVICE_PATH
const EnvPrefix = "RELAY"

// Config is the complete relay configuration
type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Image   ImageConfig   `mapstructure:"image"`
	Printer PrinterConfig `mapstructure:"printer"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Server  ServerConfig  `mapstructure:"server"`
	Source  SourceConfig  `mapstructure:"source"`
	Logging LoggingConfig `mapstructure:"logging"`

	// TUI starts the terminal dashboard
	TUI bool `mapstructure:"tui"`
	// File is the config file that was read, if any
	File string `mapstructure:"-"`
}

// DeviceConfig selects and tunes the printer link
type DeviceConfig struct {
	Path            string        `mapstructure:"path"`
	BaudRate        int           `mapstructure:"baud_rate"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
}

// ImageConfig tunes the bitmap pipeline
type ImageConfig struct {
	Contrast   float64 `mapstructure:"contrast"`
	Brightness int     `mapstructure:"brightness"`
	MaxWidth   int     `mapstructure:"max_width"`
	BasePath   string  `mapstructure:"base_path"`
	Dither     string  `mapstructure:"dither"`
}

// PrinterConfig tunes how jobs are rendered for the printer
type PrinterConfig struct {
	TextMode  string  `mapstructure:"text_mode"`
	CodeMode  string  `mapstructure:"code_mode"`
	FontPath  string  `mapstructure:"font_path"`
	FontSize  float64 `mapstructure:"font_size"`
	FeedLines int     `mapstructure:"feed_lines"`
}

// QueueConfig tunes the print queue
type QueueConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PrepareWorkers int           `mapstructure:"prepare_workers"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	Token  string `mapstructure:"token"`
}

// SourceConfig configures where image content comes from
type SourceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr, none or a file path
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Options controls where Load looks
type Options struct {
	Args    []string // command line, without the program name
	EnvFile string   // defaults to .env; a missing file is ignored
}

// Load builds the configuration. Values that cannot be parsed fall back to
// their defaults; each fallback is described in the returned warnings.
func Load(opts Options) (*Config, []string, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("error reading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(opts.Args); err != nil {
		return nil, nil, err
	}
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	l := &loader{v: v}
	cfg := l.build()
	cfg.File = v.ConfigFileUsed()
	return cfg, l.warnings, nil
}

// flagKeys maps config keys to the flags that override them
var flagKeys = map[string]string{
	"device.path":   "device",
	"server.listen": "listen",
	"tui":           "tui",
	"logging.level": "log-level",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("receipt-relay", pflag.ContinueOnError)
	fs.Usage = func() {}
	fs.String("config", "", "path to a YAML config file")
	fs.String("device", "", "printer path: serial device, tcp://host:port or usb://VID:PID")
	fs.String("listen", "", "API listen address")
	fs.Bool("tui", false, "start the terminal dashboard")
	fs.String("log-level", "", "debug, info, warn or error")
	return fs
}

// Usage returns the flag help text
func Usage() string {
	return newFlagSet().FlagUsages()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.path", "/dev/ttyUSB0")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.timeout", "10s")
	v.SetDefault("device.monitor_interval", "2s")

	v.SetDefault("image.contrast", 0)
	v.SetDefault("image.brightness", 0)
	v.SetDefault("image.max_width", 160)
	v.SetDefault("image.base_path", "./tmp")
	v.SetDefault("image.dither", "floyd-steinberg")

	v.SetDefault("printer.text_mode", "auto")
	v.SetDefault("printer.code_mode", "native")
	v.SetDefault("printer.font_path", "")
	v.SetDefault("printer.font_size", 24)
	v.SetDefault("printer.feed_lines", 3)

	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.poll_interval", "100ms")
	v.SetDefault("queue.prepare_workers", 2)

	v.SetDefault("server.listen", "0.0.0.0:12212")
	v.SetDefault("server.token", "")

	v.SetDefault("source.base_url", "")
	v.SetDefault("source.download_timeout", "30s")
	v.SetDefault("source.max_bytes", 20<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("tui", false)
}

// loader reads typed values, falling back to defaults with a warning
type loader struct {
	v        *viper.Viper
	warnings []string
}

func (l *loader) build() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			Path:            l.str("device.path", "/dev/ttyUSB0"),
			BaudRate:        l.positiveInt("device.baud_rate", 9600),
			Timeout:         l.duration("device.timeout", 10*time.Second),
			MonitorInterval: l.duration("device.monitor_interval", 2*time.Second),
		},
		Image: ImageConfig{
			Contrast:   l.float("image.contrast", 0),
			Brightness: l.int("image.brightness", 0),
			MaxWidth:   l.int("image.max_width", 160),
			BasePath:   l.str("image.base_path", "./tmp"),
			Dither:     l.oneOf("image.dither", "floyd-steinberg", "floyd-steinberg", "atkinson", "stucki", "bayer"),
		},
		Printer: PrinterConfig{
			TextMode:  l.oneOf("printer.text_mode", "auto", "native", "raster", "auto"),
			CodeMode:  l.oneOf("printer.code_mode", "native", "native", "raster"),
			FontPath:  l.str("printer.font_path", ""),
			FontSize:  l.float("printer.font_size", 24),
			FeedLines: l.int("printer.feed_lines", 3),
		},
		Queue: QueueConfig{
			MaxRetries:     l.int("queue.max_retries", 3),
			PollInterval:   l.duration("queue.poll_interval", 100*time.Millisecond),
			PrepareWorkers: l.positiveInt("queue.prepare_workers", 2),
		},
		Server: ServerConfig{
			Listen: l.str("server.listen", "0.0.0.0:12212"),
			Token:  l.str("server.token", ""),
		},
		Source: SourceConfig{
			BaseURL:         l.str("source.base_url", ""),
			DownloadTimeout: l.duration("source.download_timeout", 30*time.Second),
			MaxBytes:        l.int64("source.max_bytes", 20<<20),
		},
		Logging: LoggingConfig{
			Level:      l.oneOf("logging.level", "info", "debug", "info", "warn", "error"),
			Format:     l.oneOf("logging.format", "json", "json", "console"),
			Output:     l.str("logging.output", "stdout"),
			MaxSize:    l.int("logging.max_size", 100),
			MaxBackups: l.int("logging.max_backups", 3),
			MaxAge:     l.int("logging.max_age", 28),
			Compress:   l.bool("logging.compress", true),
		},
		TUI: l.bool("tui", false),
	}

	if cfg.Image.MaxWidth <= 0 {
		l.warn("image.max_width must be positive, using %d", 160)
		cfg.Image.MaxWidth = 160
	} else if cfg.Image.MaxWidth%8 != 0 {
		l.warn("image.max_width %d is not a multiple of 8, raster rows will be padded with paper", cfg.Image.MaxWidth)
	}
	if cfg.Image.Contrast < -100 || cfg.Image.Contrast > 100 {
		l.warn("image.contrast %v is outside [-100, 100], using 0", cfg.Image.Contrast)
		cfg.Image.Contrast = 0
	}
	if cfg.Image.Brightness < -255 || cfg.Image.Brightness > 255 {
		l.warn("image.brightness %d is outside [-255, 255], using 0", cfg.Image.Brightness)
		cfg.Image.Brightness = 0
	}
	if cfg.Queue.MaxRetries < 0 {
		l.warn("queue.max_retries %d is negative, using 0", cfg.Queue.MaxRetries)
		cfg.Queue.MaxRetries = 0
	}

	return cfg
}

func (l *loader) warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *loader) fallback(key string, raw any, def any) {
	l.warn("invalid value %q for %s, using default %v", cast.ToString(raw), key, def)
}

func (l *loader) str(key, def string) string {
	s, err := cast.ToStringE(l.v.Get(key))
	if err != nil {
		l.fallback(key, l.v.Get(key), def)
		return def
	}
	return strings.TrimSpace(s)
}

func (l *loader) int(key string, def int) int {
	raw := l.v.Get(key)
	n, err := cast.ToIntE(raw)
	if err != nil {
		l.fallback(key, raw, def)
		return def
	}
	return n
}

func (l *loader) positiveInt(key string, def int) int {
	n := l.int(key, def)
	if n <= 0 {
		l.fallback(key, n, def)
		return def
	}
	return n
}

func (l *loader) int64(key string, def int64) int64 {
	raw := l.v.Get(key)
	n, err := cast.ToInt64E(raw)
	if err != nil {
		l.fallback(key, raw, def)
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	raw := l.v.Get(key)
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		l.fallback(key, raw, def)
		return def
	}
	return f
}

func (l *loader) bool(key string, def bool) bool {
	raw := l.v.Get(key)
	b, err := cast.ToBoolE(raw)
	if err != nil {
		l.fallback(key, raw, def)
		return def
	}
	return b
}

// duration accepts Go durations ("10s") or a bare number of seconds
func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := l.v.Get(key)
	if secs, err := cast.ToFloat64E(raw); err == nil {
		if secs <= 0 {
			l.fallback(key, raw, def)
			return def
		}
		return time.Duration(secs * float64(time.Second))
	}
	d, err := cast.ToDurationE(raw)
	if err != nil || d <= 0 {
		l.fallback(key, raw, def)
		return def
	}
	return d
}

func (l *loader) oneOf(key, def string, allowed ...string) string {
	s := strings.ToLower(l.str(key, def))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	l.fallback(key, s, def)
	return def
}
