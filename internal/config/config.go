package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type SourceType string

const (
	SourceVideo  SourceType = "Video"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath string = "config.json"
	EnvPrefix         string = "VISITORDASH"
)

var SourcesList = [...]string{
	string(SourceVideo),
	string(SourceWebcam),
}

type ScriptsConfig struct {
	Video  string `mapstructure:"video"`
	Webcam string `mapstructure:"webcam"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

type Config struct {
	mu   sync.RWMutex
	path string

	Python      string        `mapstructure:"python"`
	WorkDir     string        `mapstructure:"workdir"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	Scripts  ScriptsConfig  `mapstructure:"scripts"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      LogConfig      `mapstructure:"log"`
}

func (c *Config) GetPython() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Python
}

func (c *Config) GetWorkDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.WorkDir
}

func (c *Config) GetStopTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.StopTimeout
}

func (c *Config) GetExportDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Export.Dir
}

// Script returns the script configured for the given source, or "" for an
// unknown source.
func (c *Config) Script(source SourceType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch source {
	case SourceVideo:
		return c.Scripts.Video
	case SourceWebcam:
		return c.Scripts.Webcam
	default:
		return ""
	}
}

func (c *Config) SetScript(source SourceType, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch source {
	case SourceVideo:
		c.Scripts.Video = path
	case SourceWebcam:
		c.Scripts.Webcam = path
	}
}

// Save writes the configuration to path. The format follows the file
// extension (json by default).
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}

	v := viper.New()
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	v.Set("python", c.Python)
	v.Set("workdir", c.WorkDir)
	v.Set("stop_timeout", c.StopTimeout.String())
	v.Set("scripts.video", c.Scripts.Video)
	v.Set("scripts.webcam", c.Scripts.Webcam)
	v.Set("database.path", c.Database.Path)
	v.Set("export.dir", c.Export.Dir)
	v.Set("log.debug", c.Log.Debug)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveByDefault writes back to the file the configuration was loaded from,
// or DefaultConfigPath.
func (c *Config) SaveByDefault() error {
	path := c.path
	if path == "" {
		path = DefaultConfigPath
	}
	return c.Save(path)
}

// LoadConfigFile reads path on top of the defaults. A missing file is not an
// error. Environment variables prefixed with VISITORDASH_ override both, e.g.
// VISITORDASH_DATABASE_PATH.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}

		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = NewDefaultConfig().StopTimeout
	}

	return cfg, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		Python:      "python3",
		StopTimeout: 3 * time.Second,
		Scripts: ScriptsConfig{
			Video:  "test_multiple_videos.py",
			Webcam: "test_webcam_live.py",
		},
		Database: DatabaseConfig{Path: "visitors.db"},
		Export:   ExportConfig{Dir: "exports"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("python", d.Python)
	v.SetDefault("workdir", d.WorkDir)
	v.SetDefault("stop_timeout", d.StopTimeout)
	v.SetDefault("scripts.video", d.Scripts.Video)
	v.SetDefault("scripts.webcam", d.Scripts.Webcam)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("log.debug", d.Log.Debug)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
}
