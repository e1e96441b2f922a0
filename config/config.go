package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway and its collaborators.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Timeouts   TimeoutConfig    `mapstructure:"timeouts"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	BrightData BrightDataConfig `mapstructure:"brightdata"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Session    SessionConfig    `mapstructure:"session"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	AppName string `mapstructure:"app_name"`
	Version string `mapstructure:"version"`
	Debug   bool   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TimeoutConfig holds the per-route wall-clock budgets.
type TimeoutConfig struct {
	Request time.Duration `mapstructure:"request"` // long budget for /chat
	Quick   time.Duration `mapstructure:"quick"`   // short budget for /quick-compare
}

// GeminiConfig configures the LLM provider.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int32         `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BrightDataConfig holds credentials forwarded to the MCP subprocess.
type BrightDataConfig struct {
	APIToken        string `mapstructure:"api_token"`
	BrowserAuth     string `mapstructure:"browser_auth"`
	WebUnlockerZone string `mapstructure:"web_unlocker_zone"`
}

// MCPConfig configures the tool server subprocess and its timeouts.
type MCPConfig struct {
	Command        string        `mapstructure:"command"`
	Args           []string      `mapstructure:"args"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
}

// SessionConfig selects the conversation store backend.
type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig contains redis connection settings (session backend only).
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Normalize interprets bare integer values as seconds. The flat env
// names (REQUEST_TIMEOUT=90) predate duration syntax and come through
// viper as nanoseconds.
func (t TimeoutConfig) Normalize() TimeoutConfig {
	if t.Request > 0 && t.Request < time.Millisecond {
		t.Request = time.Duration(int64(t.Request)) * time.Second
	}
	if t.Quick > 0 && t.Quick < time.Millisecond {
		t.Quick = time.Duration(int64(t.Quick)) * time.Second
	}
	return t
}

func (t TimeoutConfig) Validate() error {
	if t.Request <= 0 {
		return fmt.Errorf("timeouts.request must be > 0")
	}
	if t.Quick <= 0 {
		return fmt.Errorf("timeouts.quick must be > 0")
	}
	if t.Quick > t.Request {
		return fmt.Errorf("timeouts.quick (%s) must not exceed timeouts.request (%s)", t.Quick, t.Request)
	}
	return nil
}

func (s SessionConfig) Validate() error {
	switch s.Backend {
	case "memory", "redis":
		return nil
	}
	return fmt.Errorf("session.backend must be memory or redis, got %q", s.Backend)
}

// IsConfigured reports whether all credentials required for full tool
// support are present. The gateway still serves chat without them, in
// degraded mode.
func (c *Config) IsConfigured() bool {
	return c.Gemini.APIKey != "" && c.BrightData.APIToken != "" && c.BrightData.BrowserAuth != ""
}

// LoadConfig reads configuration from an optional YAML file plus
// environment variables. A .env file in the working directory is loaded
// first so that the flat env names (GEMINI_API_KEY, REQUEST_TIMEOUT, ...)
// used by deployments keep working.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.app_name", "webscout")
	v.SetDefault("general.version", "2.0.0")
	v.SetDefault("general.debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("timeouts.request", 90*time.Second)
	v.SetDefault("timeouts.quick", 30*time.Second)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.3)
	v.SetDefault("gemini.max_tokens", 8192)
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("brightdata.web_unlocker_zone", "web_unlocker1")
	v.SetDefault("mcp.command", "npx")
	v.SetDefault("mcp.args", []string{"-y", "@brightdata/mcp"})
	v.SetDefault("mcp.connect_timeout", 30*time.Second)
	v.SetDefault("mcp.tool_timeout", 60*time.Second)
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", 5*time.Second)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("WEBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat env names carried over from the original deployment.
	_ = v.BindEnv("gemini.api_key", "WEBSCOUT_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("brightdata.api_token", "WEBSCOUT_BRIGHTDATA_API_TOKEN", "BRIGHTDATA_API_TOKEN")
	_ = v.BindEnv("brightdata.browser_auth", "WEBSCOUT_BRIGHTDATA_BROWSER_AUTH", "BROWSER_AUTH")
	_ = v.BindEnv("brightdata.web_unlocker_zone", "WEBSCOUT_BRIGHTDATA_WEB_UNLOCKER_ZONE", "WEB_UNLOCKER_ZONE")
	_ = v.BindEnv("server.host", "WEBSCOUT_SERVER_HOST", "HOST")
	_ = v.BindEnv("server.port", "WEBSCOUT_SERVER_PORT", "PORT")
	_ = v.BindEnv("general.debug", "WEBSCOUT_GENERAL_DEBUG", "DEBUG")
	_ = v.BindEnv("timeouts.request", "WEBSCOUT_TIMEOUTS_REQUEST", "REQUEST_TIMEOUT")
	_ = v.BindEnv("timeouts.quick", "WEBSCOUT_TIMEOUTS_QUICK", "QUICK_TIMEOUT")

	if err := v.ReadInConfig(); err != nil {
		// A config file is optional; env + defaults are enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		bareSecondsHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Timeouts = cfg.Timeouts.Normalize()
	if err := cfg.Timeouts.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bareSecondsHookFunc decodes plain integer strings into Durations as
// seconds, matching the REQUEST_TIMEOUT=90 convention.
func bareSecondsHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		s := data.(string)
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return data, nil
	}
}
