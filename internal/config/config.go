package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dreamup/answer-agent/internal/agent"
)

// EnvPrefix is prepended to environment overrides, e.g. ANSWER_AGENT_STORE_BACKEND
const EnvPrefix = "ANSWER_AGENT"

type Config struct {
	// Session is only validated when a browser session is started
	Session SessionConfig `mapstructure:"session" validate:"-"`
	Browser BrowserConfig `mapstructure:"browser"`
	Flow    FlowConfig    `mapstructure:"flow"`
	Store   StoreConfig   `mapstructure:"store"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Report  ReportConfig  `mapstructure:"report"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

type SessionConfig struct {
	StartURL      string          `mapstructure:"start_url" validate:"required,url"`
	CaptureMode   string          `mapstructure:"capture_mode" validate:"oneof=image text"`
	WaitTimeout   time.Duration   `mapstructure:"wait_timeout" validate:"gt=0"`
	ScreenshotDir string          `mapstructure:"screenshot_dir"`
	Selectors     agent.Selectors `mapstructure:"selectors"`
}

type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless"`
	UserDataDir  string `mapstructure:"user_data_dir"`
	WindowWidth  int    `mapstructure:"window_width" validate:"gte=0"`
	WindowHeight int    `mapstructure:"window_height" validate:"gte=0"`
}

type FlowConfig struct {
	// MaxIterations of 0 means no limit
	MaxIterations          int `mapstructure:"max_iterations" validate:"gte=0"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" validate:"gte=2"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite file s3"`
	Path    string `mapstructure:"path"`
	Bucket  string `mapstructure:"bucket" validate:"required_if=Backend s3"`
	Key     string `mapstructure:"key"`
	Region  string `mapstructure:"region"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type ReportConfig struct {
	Dir string `mapstructure:"dir"`
	// UploadBucket enables S3 upload of reports and question screenshots
	UploadBucket string `mapstructure:"upload_bucket"`
	Region       string `mapstructure:"region"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gt=0,lte=65535"`
	// LogBufferSize bounds the log lines kept for /api/logs
	LogBufferSize int `mapstructure:"log_buffer_size" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	// File receives a copy of every log line when set
	File string `mapstructure:"file"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

// NewConfigLoader reads configFile, or config.yaml from . or $HOME/.answer-agent
func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.answer-agent")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

// Viper exposes the underlying instance so commands can bind flags to keys
func (loader *ConfigLoader) Viper() *viper.Viper {
	return loader.viper
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	// .env is optional
	_ = godotenv.Load()

	v.SetDefault("session.capture_mode", string(agent.CaptureImage))
	v.SetDefault("session.wait_timeout", 30*time.Second)
	v.SetDefault("session.start_url", "")
	v.SetDefault("session.screenshot_dir", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("flow.max_iterations", 0)
	v.SetDefault("flow.max_consecutive_failures", 3)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.key", "answers.json")
	v.SetDefault("store.region", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("report.dir", "./sessions")
	v.SetDefault("report.upload_bucket", "")
	v.SetDefault("report.region", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_buffer_size", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind OpenAI config to the standard environment variables
	if err := v.BindEnv("openai.api_key", "OPENAI_API_KEY", EnvPrefix+"_OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_API_KEY environment variable: %w", err)
	}
	if err := v.BindEnv("openai.model", "OPENAI_MODEL", EnvPrefix+"_OPENAI_MODEL"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_MODEL environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.check(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateSession checks the settings needed to drive a browser session
func (loader *ConfigLoader) ValidateSession(cfg *Config) error {
	return loader.check(cfg.Session)
}

func (loader *ConfigLoader) check(s any) error {
	err := loader.validator.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	var errorMsgs []string
	for _, e := range validationErrors {
		errorMsgs = append(errorMsgs, e.Translate(loader.translator))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
}
