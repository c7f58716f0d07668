package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the pcldump configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Source  SourceConfig  `mapstructure:"source"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Dump    DumpConfig    `mapstructure:"dump"`
	Serial  SerialConfig  `mapstructure:"serial"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SourceConfig holds the size thresholds used to pick a byte source strategy
type SourceConfig struct {
	MaxBufferSize int64 `mapstructure:"max_buffer_size"`
	MaxMapSize    int64 `mapstructure:"max_map_size"`
	MarkSize      int   `mapstructure:"mark_size"`
}

// ScannerConfig represents tokenizer limits
type ScannerConfig struct {
	MaxDataLength  int64 `mapstructure:"max_data_length"`
	SkipBinaryData bool  `mapstructure:"skip_binary_data"`
}

// DumpConfig represents output configuration
type DumpConfig struct {
	Format   string `mapstructure:"format"`
	Filter   string `mapstructure:"filter"`
	ShowData bool   `mapstructure:"show_data"`
	Stats    bool   `mapstructure:"stats"`
}

// SerialConfig represents the serial capture line
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Formats accepted by the dumper.
var Formats = []string{"text", "json", "html"}

// New returns a viper instance prepared with defaults and environment
// binding. Callers may bind command line flags into it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PCLDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the configuration from path (optional) and the environment
func Load(path string) (*Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom reads the configuration into v. An empty path skips the file.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Source defaults
	v.SetDefault("source.max_buffer_size", 64<<20)
	v.SetDefault("source.max_map_size", 1<<31-2)
	v.SetDefault("source.mark_size", 4096)

	// Scanner defaults
	v.SetDefault("scanner.max_data_length", 0)
	v.SetDefault("scanner.skip_binary_data", false)

	// Dump defaults
	v.SetDefault("dump.format", "text")
	v.SetDefault("dump.filter", "")
	v.SetDefault("dump.show_data", false)
	v.SetDefault("dump.stats", false)

	// Serial defaults
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.idle_timeout", 2*time.Second)
}

// validate validates the configuration
func validate(config *Config) error {
	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", config.Logging.Level)
	}

	if config.Source.MaxBufferSize < 0 || config.Source.MaxMapSize < 0 {
		return errors.New("source sizes must not be negative")
	}
	if config.Source.MarkSize < 0 {
		return errors.New("source mark size must not be negative")
	}
	if config.Scanner.MaxDataLength < 0 {
		return errors.New("scanner max data length must not be negative")
	}

	valid := false
	for _, f := range Formats {
		if config.Dump.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid dump format %q (want one of %s)", config.Dump.Format, strings.Join(Formats, ", "))
	}

	if config.Serial.Port != "" {
		if config.Serial.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate: %d", config.Serial.BaudRate)
		}
		if config.Serial.DataBits < 5 || config.Serial.DataBits > 8 {
			return fmt.Errorf("invalid data bits: %d", config.Serial.DataBits)
		}
		if config.Serial.StopBits != 1 && config.Serial.StopBits != 2 {
			return fmt.Errorf("invalid stop bits: %d", config.Serial.StopBits)
		}
		switch config.Serial.Parity {
		case "none", "odd", "even", "mark", "space":
		default:
			return fmt.Errorf("invalid parity: %q", config.Serial.Parity)
		}
	}

	return nil
}
