package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/draftwire/draftwire/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultPublishCron = "* * * * *"
)

// Config is the global configuration object which is filled via the configuration file
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	BlobConfig        BlobConfig        `mapstructure:"blob"`
	SchedulerConfig   SchedulerConfig   `mapstructure:"scheduler"`
	LogLevel          string            `mapstructure:"log_level"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "sqlite", "postgres" (gorm-backed) or "buntdb" (file storage, ":memory:"
// as DSN for a purely in-memory store).
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// BlobConfig configures the S3-compatible object store used for chat
// attachments and draft cover images. If Endpoint is empty, no blob
// store is set up and binary payloads are dropped.
type BlobConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// SchedulerConfig configures the recurring auto-publish check.
type SchedulerConfig struct {
	PublishCron string `mapstructure:"publish_cron"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	flagSet.String("publish-cron", "", "cron spec of the auto-publish check")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("scheduler.publish_cron", defaultPublishCron)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("DRAFTWIRE")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
