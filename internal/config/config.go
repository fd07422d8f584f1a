package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`
	Raffle RaffleConfig `mapstructure:"raffle"`
	Oracle OracleConfig `mapstructure:"oracle"`
	Bank   BankConfig   `mapstructure:"bank"`
	Notify NotifyConfig `mapstructure:"notify"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Keeper  string `mapstructure:"keeper"`
}

type RaffleConfig struct {
	// EntranceFee is a decimal integer in minor units (e.g. wei).
	EntranceFee string        `mapstructure:"entrance_fee"`
	Interval    time.Duration `mapstructure:"interval"`
	DrawTimeout time.Duration `mapstructure:"draw_timeout"`
	// Decimals is only used to render amounts in major units.
	Decimals int32 `mapstructure:"decimals"`
}

// Fee parses EntranceFee.
func (c RaffleConfig) Fee() (*uint256.Int, error) {
	raw := strings.TrimSpace(c.EntranceFee)
	if raw == "" {
		return nil, errors.New("raffle.entrance_fee is required")
	}
	fee, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, errors.New("raffle.entrance_fee must be a decimal integer")
	}
	if fee.IsZero() {
		return nil, errors.New("raffle.entrance_fee must be positive")
	}
	return fee, nil
}

func (c RaffleConfig) Validate() error {
	if _, err := c.Fee(); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errors.New("raffle.interval must be positive")
	}
	if c.DrawTimeout < 0 {
		return errors.New("raffle.draw_timeout must not be negative")
	}
	return nil
}

type OracleConfig struct {
	Mode string `mapstructure:"mode"`

	// Opaque parameters forwarded to the coordinator.
	KeyHash              string `mapstructure:"key_hash"`
	SubscriptionID       string `mapstructure:"subscription_id"`
	CallbackGasLimit     uint32 `mapstructure:"callback_gas_limit"`
	RequestConfirmations uint16 `mapstructure:"request_confirmations"`
	NumWords             uint32 `mapstructure:"num_words"`

	// CallbackSecret signs and verifies oracle callback tokens (HS256).
	CallbackSecret string        `mapstructure:"callback_secret"`
	CallbackURL    string        `mapstructure:"callback_url"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`

	HTTP  OracleHTTPConfig  `mapstructure:"http"`
	Local OracleLocalConfig `mapstructure:"local"`
}

const (
	OracleModeLocal = "local"
	OracleModeHTTP  = "http"
)

// ModeName normalizes Mode. An empty mode means local.
func (c OracleConfig) ModeName() string {
	m := strings.ToLower(strings.TrimSpace(c.Mode))
	if m == "" {
		return OracleModeLocal
	}
	return m
}

func (c OracleConfig) Validate() error {
	switch c.ModeName() {
	case OracleModeLocal:
		return nil
	case OracleModeHTTP:
		if strings.TrimSpace(c.HTTP.BaseURL) == "" {
			return errors.New("oracle.http.base_url is required in http mode")
		}
		if strings.TrimSpace(c.CallbackSecret) == "" {
			return errors.New("oracle.callback_secret is required in http mode")
		}
		return nil
	default:
		return fmt.Errorf("oracle.mode %q is not one of local, http", c.Mode)
	}
}

type OracleHTTPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OracleLocalConfig struct {
	AutoFulfill  bool          `mapstructure:"auto_fulfill"`
	FulfillDelay time.Duration `mapstructure:"fulfill_delay"`
}

type BankConfig struct {
	EscrowAddress string `mapstructure:"escrow_address"`
	FaucetEnabled bool   `mapstructure:"faucet_enabled"`
	FaucetAmount  string `mapstructure:"faucet_amount"`
}

type NotifyConfig struct {
	Redis   RedisNotifyConfig   `mapstructure:"redis"`
	Webhook WebhookNotifyConfig `mapstructure:"webhook"`
	Stream  StreamNotifyConfig  `mapstructure:"stream"`
	Slack   SlackNotifyConfig   `mapstructure:"slack"`
	Discord DiscordNotifyConfig `mapstructure:"discord"`
	Queue   QueueNotifyConfig   `mapstructure:"queue"`
}

// QueueNotifyConfig bounds the background delivery of observations.
type QueueNotifyConfig struct {
	Size    int           `mapstructure:"size"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisNotifyConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Channel   string        `mapstructure:"channel"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type WebhookNotifyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Project string        `mapstructure:"project"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SlackNotifyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
}

type StreamNotifyConfig struct {
	Buffer int `mapstructure:"buffer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAFFLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.enabled", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.keeper", "@every 5s")

	// 0.01 ETH every 30s.
	v.SetDefault("raffle.entrance_fee", "10000000000000000")
	v.SetDefault("raffle.interval", "30s")
	v.SetDefault("raffle.draw_timeout", "0s")
	v.SetDefault("raffle.decimals", 18)

	v.SetDefault("oracle.mode", "local")
	v.SetDefault("oracle.key_hash", "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c")
	v.SetDefault("oracle.subscription_id", "")
	v.SetDefault("oracle.callback_gas_limit", 500000)
	v.SetDefault("oracle.request_confirmations", 3)
	v.SetDefault("oracle.num_words", 1)
	v.SetDefault("oracle.callback_secret", "")
	v.SetDefault("oracle.callback_url", "")
	v.SetDefault("oracle.token_ttl", "1h")
	v.SetDefault("oracle.http.base_url", "")
	v.SetDefault("oracle.http.api_key", "")
	v.SetDefault("oracle.http.timeout", "15s")
	v.SetDefault("oracle.local.auto_fulfill", true)
	v.SetDefault("oracle.local.fulfill_delay", "2s")

	v.SetDefault("bank.escrow_address", "0x000000000000000000000000000000000000dEaD")
	v.SetDefault("bank.faucet_enabled", true)
	v.SetDefault("bank.faucet_amount", "1000000000000000000")

	v.SetDefault("notify.redis.enabled", false)
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.password", "")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.channel", "raffle:observations")
	v.SetDefault("notify.redis.key_prefix", "raffle:")
	v.SetDefault("notify.redis.ttl", "0s")
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.project", "raffle")
	v.SetDefault("notify.webhook.timeout", "5s")
	v.SetDefault("notify.stream.buffer", 32)
	v.SetDefault("notify.slack.enabled", false)
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.slack.username", "raffle")
	v.SetDefault("notify.discord.enabled", false)
	v.SetDefault("notify.discord.bot_token", "")
	v.SetDefault("notify.discord.channel_id", "")
	v.SetDefault("notify.queue.size", 256)
	v.SetDefault("notify.queue.timeout", "10s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Raffle.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.Oracle.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
