package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ModelPathEnv overrides ml.model_path when set.
const ModelPathEnv = "CLASSIFICATION_MODEL_PATH"

type Config struct {
	Http     HTTPConfig     `yaml:"http"`
	ML       MLConfig       `yaml:"ml"`
	Retrain  RetrainConfig  `yaml:"retrain"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type MLConfig struct {
	ModelPath     string        `yaml:"model_path"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	MaxBatchSize  int           `yaml:"max_batch_size"`
	CacheSize     int           `yaml:"cache_size"`
}

// ModelPathPlaceholder in a trainer command is replaced by the final ml.model_path.
const ModelPathPlaceholder = "{model_path}"

type TrainerConfig struct {
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
}

type RetrainConfig struct {
	Classification     TrainerConfig `yaml:"classification"`
	Generic            TrainerConfig `yaml:"generic"`
	ReloadAfterRetrain *bool         `yaml:"reload_after_retrain"`
}

// Reload reports whether the model should be reloaded after a successful retrain.
func (r RetrainConfig) Reload() bool {
	return r.ReloadAfterRetrain == nil || *r.ReloadAfterRetrain
}

type DatabaseConfig struct {
	// Path of the sqlite prediction log; empty disables it.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Default() *Config {
	return &Config{
		Http: HTTPConfig{
			Port:           8000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			MaxBodyBytes:   10 << 20,
			AllowedOrigins: []string{"*"},
		},
		ML: MLConfig{
			ModelPath:     "./model/classifier.json",
			WatchDebounce: 250 * time.Millisecond,
			MaxBatchSize:  10000,
			CacheSize:     4096,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults are used as they are.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if p := os.Getenv(ModelPathEnv); p != "" {
		cfg.ML.ModelPath = p
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Http.Port <= 0 {
		cfg.Http.Port = def.Http.Port
	}
	if cfg.Http.MaxBodyBytes <= 0 {
		cfg.Http.MaxBodyBytes = def.Http.MaxBodyBytes
	}
	if len(cfg.Http.AllowedOrigins) == 0 {
		cfg.Http.AllowedOrigins = def.Http.AllowedOrigins
	}
	if cfg.ML.ModelPath == "" {
		cfg.ML.ModelPath = def.ML.ModelPath
	}
	if cfg.ML.WatchDebounce <= 0 {
		cfg.ML.WatchDebounce = def.ML.WatchDebounce
	}
	// trainers write the artifact the registry reloads
	if len(cfg.Retrain.Classification.Command) == 0 {
		cfg.Retrain.Classification = defaultTrainer("classification")
	}
	if len(cfg.Retrain.Generic.Command) == 0 {
		cfg.Retrain.Generic = defaultTrainer("generic")
	}
	cfg.Retrain.Classification.Command = expandModelPath(cfg.Retrain.Classification.Command, cfg.ML.ModelPath)
	cfg.Retrain.Generic.Command = expandModelPath(cfg.Retrain.Generic.Command, cfg.ML.ModelPath)
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func defaultTrainer(task string) TrainerConfig {
	return TrainerConfig{
		Command: []string{"./train_model", "-task", task, "-data", "./data/training.csv", "-model_path", ModelPathPlaceholder},
	}
}

func expandModelPath(command []string, modelPath string) []string {
	expanded := make([]string, len(command))
	for i, arg := range command {
		expanded[i] = strings.ReplaceAll(arg, ModelPathPlaceholder, modelPath)
	}
	return expanded
}
