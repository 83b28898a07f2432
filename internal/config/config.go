package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tubegrab/internal/dirs"
	"tubegrab/internal/logging"
	"tubegrab/internal/quality"
)

// Config is the validated application configuration.
type Config struct {
	OutDir           string
	Quality          string
	DLBinary         string
	Engine           string // exec | library
	Resolver         string // ytdlp | native
	Verbose          bool
	Log              logging.Config
	MinFreeMB        int
	ServeAddr        string
	ProgressInterval time.Duration
}

// MinFreeBytes converts MinFreeMB to bytes.
func (c Config) MinFreeBytes() uint64 {
	if c.MinFreeMB <= 0 {
		return 0
	}
	return uint64(c.MinFreeMB) * 1024 * 1024
}

// envReplacer maps keys like log.level to TUBEGRAB_LOG_LEVEL.
var envReplacer = strings.NewReplacer("-", "_", ".", "_")

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("out_dir", "")
	v.SetDefault("quality", "1080p")
	v.SetDefault("dl_binary", "")
	v.SetDefault("engine", "exec")
	v.SetDefault("resolver", "ytdlp")
	v.SetDefault("verbose", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("min_free_mb", 0)
	v.SetDefault("serve.addr", "127.0.0.1:8765")
	v.SetDefault("progress_interval", "250ms")
}

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: a missing config file is not an error.
func Init(root *cobra.Command) error {
	_ = dirs.EnsureAll()

	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: TUBEGRAB_*
	viper.SetEnvPrefix("TUBEGRAB")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()
	SetDefaults(viper.GetViper())

	flags := root.PersistentFlags()
	for key, flag := range map[string]string{
		"out_dir":     "out-dir",
		"verbose":     "verbose",
		"dl_binary":   "dl-binary",
		"quality":     "quality",
		"engine":      "engine",
		"resolver":    "resolver",
		"log.level":   "log-level",
		"log.format":  "log-format",
		"log.file":    "log-file",
		"min_free_mb": "min-free-mb",
	} {
		if f := flags.Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config %s: %w", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}

// Load returns the validated configuration from the global Viper instance.
func Load() (Config, error) {
	return loadFrom(viper.GetViper())
}

func loadFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		OutDir:           strings.TrimSpace(v.GetString("out_dir")),
		Quality:          strings.TrimSpace(v.GetString("quality")),
		DLBinary:         strings.TrimSpace(v.GetString("dl_binary")),
		Engine:           strings.ToLower(strings.TrimSpace(v.GetString("engine"))),
		Resolver:         strings.ToLower(strings.TrimSpace(v.GetString("resolver"))),
		Verbose:          v.GetBool("verbose"),
		MinFreeMB:        v.GetInt("min_free_mb"),
		ServeAddr:        strings.TrimSpace(v.GetString("serve.addr")),
		ProgressInterval: v.GetDuration("progress_interval"),
		Log: logging.Config{
			Level:      strings.ToLower(v.GetString("log.level")),
			Format:     strings.ToLower(v.GetString("log.format")),
			OutputPath: v.GetString("log.file"),
		},
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.OutDir == "" {
		d, err := dirs.DefaultOutputDir()
		if err != nil {
			return cfg, fmt.Errorf("default output dir: %w", err)
		}
		cfg.OutDir = d
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := quality.Default().Lookup(c.Quality); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	switch c.Engine {
	case "exec", "library":
	default:
		return fmt.Errorf("engine: unknown value %q (want exec or library)", c.Engine)
	}
	switch c.Resolver {
	case "ytdlp", "native":
	default:
		return fmt.Errorf("resolver: unknown value %q (want ytdlp or native)", c.Resolver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown value %q (want console or json)", c.Log.Format)
	}
	if c.MinFreeMB < 0 {
		return fmt.Errorf("min_free_mb: must not be negative, got %d", c.MinFreeMB)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval: must be positive, got %s", c.ProgressInterval)
	}
	return nil
}
