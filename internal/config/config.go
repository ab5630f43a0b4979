package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	State     StateConfig     `mapstructure:"state"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Changelog ChangelogConfig `mapstructure:"changelog"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StateConfig struct {
	// Backend is one of memory, file, pebble, badger.
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type CatalogConfig struct {
	// Source is file or kafka.
	Source  string        `mapstructure:"source"`
	Path    string        `mapstructure:"path"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Refresh time.Duration `mapstructure:"refresh"`
}

type KafkaConfig struct {
	Bootstrap string `mapstructure:"bootstrap"`
	Topic     string `mapstructure:"topic"`
	Key       string `mapstructure:"key"`
}

type ChangelogConfig struct {
	// Sink is none, file, kafka or both.
	Sink      string `mapstructure:"sink"`
	Dir       string `mapstructure:"dir"`
	File      string `mapstructure:"file"`
	Bootstrap string `mapstructure:"bootstrap"`
	Topic     string `mapstructure:"topic"`
}

type SnapshotConfig struct {
	Dir           string `mapstructure:"dir"`
	ManifestDir   string `mapstructure:"manifest_dir"`
	ManifestTopic string `mapstructure:"manifest_topic"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ChangelogPath is the file the file sink appends to.
func (c ChangelogConfig) ChangelogPath() string {
	return filepath.Join(c.Dir, c.File)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("state.backend", "pebble")
	v.SetDefault("state.dir", "./data/state")
	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "./catalog.json")
	v.SetDefault("catalog.kafka.bootstrap", "localhost:9092")
	v.SetDefault("catalog.kafka.topic", "showroom.catalog")
	v.SetDefault("catalog.kafka.key", "catalog-latest")
	v.SetDefault("catalog.refresh", time.Duration(0))
	v.SetDefault("changelog.sink", "file")
	v.SetDefault("changelog.dir", "./data/changelog")
	v.SetDefault("changelog.file", "selection.jsonl")
	v.SetDefault("changelog.bootstrap", "localhost:9092")
	v.SetDefault("changelog.topic", "showroom.selection.changelog")
	v.SetDefault("snapshot.dir", "./data/snapshots")
	v.SetDefault("snapshot.manifest_dir", "./data/snapshots")
	v.SetDefault("snapshot.manifest_topic", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration from path, or from showroom.yaml in the usual
// places when path is empty, and from SHOWROOM_ environment variables such as
// SHOWROOM_STATE_BACKEND. Only an explicitly named file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("showroom")
		v.SetConfigType("yaml")
		v.AddConfigPath("./")
		v.AddConfigPath("$HOME/.showroom/")
		v.AddConfigPath("/etc/showroom/")
	}

	v.SetEnvPrefix("SHOWROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
