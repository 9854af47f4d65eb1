package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"duet-backup/core/exclude"
	"duet-backup/core/logger"
	"duet-backup/core/server"
	"duet-backup/core/storage"
	"duet-backup/feature/github"
	"duet-backup/feature/printer"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source kinds.
const (
	SourceLocal   = "local"
	SourcePrinter = "printer"
)

// Remote kinds.
const (
	RemoteGitHub      = "github"
	RemoteObjectStore = "objectstore"
)

// FileName is the config file looked up in the config directory, without extension.
const FileName = "duet-backup"

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Backup describes what is mirrored where.
	Backup Backup `mapstructure:"backup"`
	// GitHub holds the repository remote settings.
	GitHub github.Config `mapstructure:"github"`
	// Storage holds the object store remote settings.
	Storage storage.Config `mapstructure:"storage"`
	// Printer holds the controller connection settings.
	Printer printer.Config `mapstructure:"printer"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Server holds configuration for the status API.
	Server server.Config `mapstructure:"server"`
}

// Backup holds the settings of a backup pass and the schedule.
type Backup struct {
	// Source is local or printer.
	Source string `mapstructure:"source" default:"printer"`
	// Remote is github or objectstore.
	Remote string `mapstructure:"remote" default:"github"`
	// Branch receives the mirrored files.
	Branch string `mapstructure:"branch" default:""`
	// TopDir is the directory the local source resolves roots against.
	TopDir string `mapstructure:"top_dir" default:"."`
	// Dirs are the root directories to back up.
	Dirs []string `mapstructure:"dirs" default:""`
	// Ignore holds glob patterns of source paths to skip.
	Ignore []string `mapstructure:"ignore" default:""`
	// Protect holds remote path prefixes that are never deleted.
	Protect []string `mapstructure:"protect" default:""`
	// Delete enables removal of remote files missing from the source.
	Delete bool `mapstructure:"delete" default:"true"`
	// Reserved holds extra remote paths the pass never deletes.
	Reserved []string `mapstructure:"reserved" default:""`
	// Interval between passes. Zero runs a single pass.
	Interval time.Duration `mapstructure:"interval" default:"0s"`
	// RetryAfterEmpty is the wait after an empty source. Zero means Interval/4.
	RetryAfterEmpty time.Duration `mapstructure:"retry_after_empty" default:"0s"`
}

// LoadConfig loads configuration from the .env file in dir, an optional
// config file and environment variables. An empty file looks for
// duet-backup.{yaml,toml,json} in dir and carries on without one.
func LoadConfig(dir, file string) (*Config, error) {
	if dir == "" {
		dir = "."
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Map environment variables to nested keys (e.g. GITHUB_TOKEN -> github.token)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Backup.Dirs = compact(config.Backup.Dirs)
	config.Backup.Ignore = compact(config.Backup.Ignore)
	config.Backup.Protect = compact(config.Backup.Protect)
	config.Backup.Reserved = compact(config.Backup.Reserved)

	return &config, nil
}

// Validate checks mandatory values and normalizes directory names.
func (c *Config) Validate() error {
	var errs []error
	b := &c.Backup

	switch b.Source {
	case SourceLocal, SourcePrinter:
	default:
		errs = append(errs, fmt.Errorf("backup.source must be %q or %q, got %q", SourceLocal, SourcePrinter, b.Source))
	}

	switch b.Remote {
	case RemoteGitHub:
		if c.GitHub.User == "" {
			errs = append(errs, errors.New("github.user is required"))
		}
		if c.GitHub.Token == "" {
			errs = append(errs, errors.New("github.token is required"))
		}
		if c.GitHub.Repo == "" {
			errs = append(errs, errors.New("github.repo is required"))
		}
	case RemoteObjectStore:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("backup.remote must be %q or %q, got %q", RemoteGitHub, RemoteObjectStore, b.Remote))
	}

	if b.Branch == "" {
		errs = append(errs, errors.New("backup.branch is required"))
	}
	if len(b.Dirs) == 0 {
		errs = append(errs, errors.New("backup.dirs needs at least one directory"))
	}
	if _, err := exclude.New(b.Ignore); err != nil {
		errs = append(errs, fmt.Errorf("backup.ignore: %w", err))
	}
	if b.Interval < 0 || b.RetryAfterEmpty < 0 {
		errs = append(errs, errors.New("backup.interval and backup.retry_after_empty must not be negative"))
	}

	b.Dirs = printer.ApplyAliases(b.Dirs)
	b.Protect = printer.ApplyAliases(b.Protect)

	return errors.Join(errs...)
}

// compact trims entries and drops empty ones.
func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
