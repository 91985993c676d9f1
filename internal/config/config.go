package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Gateways   GatewaysConfig   `mapstructure:"gateways"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	SenderID   SenderIDConfig   `mapstructure:"sender_id"`
	Segments   SegmentsConfig   `mapstructure:"segments"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Credits    CreditsConfig    `mapstructure:"credits"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Webhooks   WebhooksConfig   `mapstructure:"webhooks"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json|console
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	BatchTopic     string   `mapstructure:"batch_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type DispatcherConfig struct {
	Workers            int           `mapstructure:"workers"`
	SendTimeout        time.Duration `mapstructure:"send_timeout"`
	RateLimitWait      time.Duration `mapstructure:"rate_limit_wait"`
	RouteCacheTTL      time.Duration `mapstructure:"route_cache_ttl"`
	SyncMaxRecipients  int           `mapstructure:"sync_max_recipients"`
	BatchMaxRecipients int           `mapstructure:"batch_max_recipients"`
}

// RateLimitConfig is the per-account API limit used when an account has no
// own rate_limit_rps.
type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type GatewaysConfig struct {
	ProbeInterval time.Duration    `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration    `mapstructure:"probe_timeout"`
	Providers     []ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig carries the credentials and tuning of one gateway. The
// gateways table owns the active/primary flags.
type ProviderConfig struct {
	Name        string        `mapstructure:"name"`
	DisplayName string        `mapstructure:"display_name"`
	Kind        string        `mapstructure:"kind"` // bulksms|bulkgate|routee|http
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	AuthURL     string        `mapstructure:"auth_url"`
	SendPath    string        `mapstructure:"send_path"`
	BalancePath string        `mapstructure:"balance_path"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Token       string        `mapstructure:"token"`
	AppID       string        `mapstructure:"app_id"`
	TimeoutMs   int           `mapstructure:"timeout_ms"`
	RPS         float64       `mapstructure:"rps"`
	Burst       int           `mapstructure:"burst"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type RoutePair struct {
	Primary  string `mapstructure:"primary"`
	Fallback string `mapstructure:"fallback"`
}

type RoutingRuleConfig struct {
	Country  string `mapstructure:"country"`
	Primary  string `mapstructure:"primary"`
	Fallback string `mapstructure:"fallback"`
}

type RoutingConfig struct {
	Default RoutePair           `mapstructure:"default"`
	Rules   []RoutingRuleConfig `mapstructure:"rules"` // seeded into routing_rules
}

type SenderIDConfig struct {
	Default    string   `mapstructure:"default"`
	Deprecated []string `mapstructure:"deprecated"`
}

type SegmentsConfig struct {
	Max int `mapstructure:"max"`
}

type PricingConfig struct {
	CreditsPerSegment int64 `mapstructure:"credits_per_segment"`
}

// CreditsConfig tunes hold settlement. Holds older than HoldMaxAge are
// settled by the sweeper every HoldSweepInterval.
type CreditsConfig struct {
	SettleAttempts    int           `mapstructure:"settle_attempts"`
	HoldSweepInterval time.Duration `mapstructure:"hold_sweep_interval"`
	HoldMaxAge        time.Duration `mapstructure:"hold_max_age"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type WebhooksConfig struct {
	Token string `mapstructure:"token"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (SMSGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "no such file") {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// env override (SMSGW_MYSQL_DSN -> mysql.dsn)
	v.SetEnvPrefix("SMSGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c Config) Validate() error {
	if c.Pricing.CreditsPerSegment <= 0 {
		return fmt.Errorf("invalid pricing: credits_per_segment=%d", c.Pricing.CreditsPerSegment)
	}
	// a hold must outlive both gateway attempts of its send before it is swept
	if c.Credits.HoldSweepInterval > 0 && c.Credits.HoldMaxAge <= 2*(c.Dispatcher.SendTimeout+c.Dispatcher.RateLimitWait) {
		return fmt.Errorf("credits.hold_max_age=%s is shorter than a dispatch", c.Credits.HoldMaxAge)
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("invalid dispatcher.workers=%d", c.Dispatcher.Workers)
	}
	if c.Routing.Default.Primary == "" {
		return errors.New("routing.default.primary is required")
	}

	names := make(map[string]struct{}, len(c.Gateways.Providers))
	for _, p := range c.Gateways.Providers {
		if p.Name == "" {
			return errors.New("gateway provider without name")
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("duplicate gateway provider %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}
	for _, n := range []string{c.Routing.Default.Primary, c.Routing.Default.Fallback} {
		if n == "" {
			continue
		}
		if _, ok := names[n]; !ok {
			return fmt.Errorf("routing default references unknown gateway %q", n)
		}
	}
	return nil
}

// Provider returns the provider config with the given name.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Gateways.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
