// internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig configures one form-discovery provider.
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"`
	MaxTokens int    `yaml:"max_tokens"`

	// USD per million tokens.
	InputPrice  float64 `yaml:"input_price"`
	OutputPrice float64 `yaml:"output_price"`

	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

type Config struct {
	App struct {
		Port     int    `yaml:"port"`
		DataDir  string `yaml:"data_dir"`
		LogLevel string `yaml:"log_level"`
		LogJSON  bool   `yaml:"log_json"`
	} `yaml:"app"`

	Store struct {
		// sqlite, postgres or memory
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Queue struct {
		MaxConcurrentPosts int           `yaml:"max_concurrent_posts"`
		MaxAttempts        int           `yaml:"max_attempts"`
		BackoffBase        time.Duration `yaml:"backoff_base"`
		BackoffMax         time.Duration `yaml:"backoff_max"`
		TaskMaxAttempts    int           `yaml:"task_max_attempts"`
		SweepSpec          string        `yaml:"sweep_spec"`
	} `yaml:"queue"`

	Browser struct {
		Headless        bool          `yaml:"headless"`
		ExecPath        string        `yaml:"exec_path"`
		ProfileDir      string        `yaml:"profile_dir"`
		UserAgent       string        `yaml:"user_agent"`
		NavTimeout      time.Duration `yaml:"nav_timeout"`
		StepTimeout     time.Duration `yaml:"step_timeout"`
		SubmitWait      time.Duration `yaml:"submit_wait"`
		PaceMin         time.Duration `yaml:"pace_min"`
		PaceMax         time.Duration `yaml:"pace_max"`
		RequestsPerHost float64       `yaml:"requests_per_host"`
		Burst           int           `yaml:"burst"`
	} `yaml:"browser"`

	Discovery struct {
		Primary          string                    `yaml:"primary"`
		Fallback         string                    `yaml:"fallback"`
		CostCeiling      float64                   `yaml:"cost_ceiling"`
		AbortOverCeiling bool                      `yaml:"abort_over_ceiling"`
		MinConfidence    float64                   `yaml:"min_confidence"`
		FieldFloor       float64                   `yaml:"field_floor"`
		MaxExcerptBytes  int                       `yaml:"max_excerpt_bytes"`
		Providers        map[string]ProviderConfig `yaml:"providers"`
	} `yaml:"discovery"`

	Notify struct {
		RedisURL     string `yaml:"redis_url"`
		RedisChannel string `yaml:"redis_channel"`
	} `yaml:"notify"`

	Credentials struct {
		Username    string `yaml:"username"`
		PasswordEnv string `yaml:"password_env"`
	} `yaml:"credentials"`

	Email struct {
		Enabled  bool          `yaml:"enabled"`
		IMAPHost string        `yaml:"imap_host"`
		IMAPPort int           `yaml:"imap_port"`
		Username string        `yaml:"username"`
		Mailbox  string        `yaml:"mailbox"`
		Wait     time.Duration `yaml:"wait"`
		Poll     time.Duration `yaml:"poll"`
	} `yaml:"email"`

	API struct {
		JWTSecret string `yaml:"-"`
	} `yaml:"api"`

	BoardsFile string `yaml:"boards_file"`
}

// Default returns a config with every knob at its documented default.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38480
	cfg.App.DataDir = "."
	cfg.App.LogLevel = "info"

	cfg.Store.Driver = "sqlite"

	cfg.Queue.MaxConcurrentPosts = 3
	cfg.Queue.MaxAttempts = 3
	cfg.Queue.BackoffBase = 30 * time.Second
	cfg.Queue.BackoffMax = 30 * time.Minute
	cfg.Queue.TaskMaxAttempts = 5
	cfg.Queue.SweepSpec = "@every 5m"

	cfg.Browser.Headless = true
	cfg.Browser.NavTimeout = 30 * time.Second
	cfg.Browser.StepTimeout = 15 * time.Second
	cfg.Browser.SubmitWait = 10 * time.Second
	cfg.Browser.PaceMin = 150 * time.Millisecond
	cfg.Browser.PaceMax = 600 * time.Millisecond
	cfg.Browser.RequestsPerHost = 0.5
	cfg.Browser.Burst = 2

	cfg.Discovery.Primary = "openai"
	cfg.Discovery.Fallback = "heuristic"
	cfg.Discovery.CostCeiling = 0.01
	cfg.Discovery.MinConfidence = 0.7
	cfg.Discovery.FieldFloor = 0.5
	cfg.Discovery.MaxExcerptBytes = 12000

	cfg.Notify.RedisChannel = "postjob:events"

	cfg.Email.Mailbox = "INBOX"
	cfg.Email.IMAPPort = 993
	cfg.Email.Wait = 2 * time.Minute
	cfg.Email.Poll = 15 * time.Second

	cfg.BoardsFile = "boards.toml"
	return cfg
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadFile reads path over the defaults without consulting the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
