package config

import (
	"errors"
	"os"

	configutil "github.com/NYCU-SDC/summer/pkg/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrRunDirRequired  = errors.New("run_dir is required")
	ErrProfileRequired = errors.New("profile is required")
)

type Config struct {
	Debug bool `yaml:"debug" envconfig:"DEBUG"`

	// Profile names the topology profile of the target machine.
	Profile string `yaml:"profile" envconfig:"IFSBENCH_PROFILE"`
	// ProfilesFile optionally adds site-specific topology profiles.
	ProfilesFile string `yaml:"profiles_file" envconfig:"IFSBENCH_PROFILES_FILE"`
	// Launcher selects the launch command flavor (srun, aprun, mpirun).
	Launcher string `yaml:"launcher" envconfig:"IFSBENCH_LAUNCHER"`
	// RunDir is the working directory benchmark runs are launched in.
	RunDir string `yaml:"run_dir" envconfig:"IFSBENCH_RUN_DIR"`

	// DatabaseURL enables the Postgres run-record store when set.
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"`

	OtelCollectorUrl string `yaml:"otel_collector_url" envconfig:"OTEL_COLLECTOR_URL"`
}

type LogBuffer struct {
	buffer []logEntry
}

type logEntry struct {
	msg  string
	err  error
	meta map[string]string
}

func NewConfigLogger() *LogBuffer {
	return &LogBuffer{}
}

func (cl *LogBuffer) Warn(msg string, err error, meta map[string]string) {
	cl.buffer = append(cl.buffer, logEntry{msg: msg, err: err, meta: meta})
}

func (cl *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range cl.buffer {
		var fields []zap.Field
		if e.err != nil {
			fields = append(fields, zap.Error(e.err))
		}
		for k, v := range e.meta {
			fields = append(fields, zap.String(k, v))
		}
		logger.Warn(e.msg, fields...)
	}
	cl.buffer = nil
}

func (c *Config) Validate() error {
	if c.RunDir == "" {
		return ErrRunDirRequired
	}

	if c.Profile == "" {
		return ErrProfileRequired
	}

	return nil
}

// Load reads the configuration from config.yaml and the environment.
// Command-line flags are applied afterwards through WithOverrides.
func Load() (Config, *LogBuffer) {
	logger := NewConfigLogger()

	config := &Config{
		Debug:    false,
		Launcher: "srun",
		RunDir:   ".",
	}

	var err error

	config, err = FromFile("config.yaml", config, logger)
	if err != nil {
		logger.Warn("Failed to load config from file", err, map[string]string{"path": "config.yaml"})
	}

	config, err = FromEnv(config, logger)
	if err != nil {
		logger.Warn("Failed to load config from env", err, map[string]string{"path": ".env"})
	}

	return *config, logger
}

func FromFile(filePath string, config *Config, logger *LogBuffer) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Warn("Failed to close config file", err, map[string]string{"path": filePath})
		}
	}(file)

	fileConfig := Config{}
	if err := yaml.NewDecoder(file).Decode(&fileConfig); err != nil {
		return config, err
	}

	return configutil.Merge[Config](config, &fileConfig)
}

func FromEnv(config *Config, logger *LogBuffer) (*Config, error) {
	if err := godotenv.Overload(); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("No .env file found", err, map[string]string{"path": ".env"})
		} else {
			return nil, err
		}
	}

	envConfig := &Config{
		Debug:            os.Getenv("DEBUG") == "true",
		Profile:          os.Getenv("IFSBENCH_PROFILE"),
		ProfilesFile:     os.Getenv("IFSBENCH_PROFILES_FILE"),
		Launcher:         os.Getenv("IFSBENCH_LAUNCHER"),
		RunDir:           os.Getenv("IFSBENCH_RUN_DIR"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		OtelCollectorUrl: os.Getenv("OTEL_COLLECTOR_URL"),
	}

	return configutil.Merge[Config](config, envConfig)
}

// WithOverrides merges command-line flag values over the loaded config.
func (c Config) WithOverrides(overrides Config) (Config, error) {
	merged, err := configutil.Merge[Config](&c, &overrides)
	if err != nil {
		return c, err
	}
	return *merged, nil
}
