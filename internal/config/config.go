// Package config provides YAML-based configuration loading. Secrets (bot
// tokens, payment and API keys) come from the environment, optionally via a
// .env file, and override anything in the YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from config.yaml.
type Config struct {
	Telegram  TelegramConfig `yaml:"telegram"`
	Districts string         `yaml:"districts"` // path to districts.yml
	Database  DatabaseConfig `yaml:"database"`
	Payments  PaymentsConfig `yaml:"payments"`
	DeepSeek  DeepSeekConfig `yaml:"deepseek"`
	Relay     RelayConfig    `yaml:"relay"`
	Admin     AdminConfig    `yaml:"admin"`
	Products  []Product      `yaml:"products"`
}

// TelegramConfig holds chat wiring and the bot tokens.
type TelegramConfig struct {
	MirrorToken string `yaml:"-"` // TAXILINE_MIRROR_TOKEN
	BotToken    string `yaml:"-"` // TAXILINE_BOT_TOKEN

	ForumChatID     int64   `yaml:"forum_chat_id"`      // destination forum supergroup
	AllOrdersThread int     `yaml:"all_orders_thread"`  // catch-all topic
	PaidGroupID     int64   `yaml:"paid_group_id"`      // subscriber group
	AdminChatID     int64   `yaml:"admin_chat_id"`      // payment reports; 0 disables
	IgnoreChannels  []int64 `yaml:"ignore_channels"`    // never mirrored
	MinTextLen      int     `yaml:"min_text_len"`       // shorter posts are dropped
}

// DatabaseConfig holds connection settings. An empty Host selects SQLite at
// SQLitePath instead of MySQL.
type DatabaseConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"-"` // TAXILINE_DB_PASSWORD
	Database   string `yaml:"database"`
	SQLitePath string `yaml:"sqlite_path"`
}

// PaymentsConfig holds the provider credentials.
type PaymentsConfig struct {
	TinkoffTerminal string `yaml:"tinkoff_terminal"`
	TinkoffPassword string `yaml:"-"` // TAXILINE_TINKOFF_PASSWORD
	YooKassaShopID  string `yaml:"yookassa_shop_id"`
	YooKassaSecret  string `yaml:"-"` // TAXILINE_YOOKASSA_SECRET
	ReturnURL       string `yaml:"return_url"`
}

// DeepSeekConfig holds the extraction API settings.
type DeepSeekConfig struct {
	APIKey string `yaml:"-"` // TAXILINE_DEEPSEEK_KEY
	Model  string `yaml:"model"`
}

// RelayConfig drives the VIP-to-free delayed repost.
type RelayConfig struct {
	VIPChannelID  int64  `yaml:"vip_channel_id"`
	FreeChannelID int64  `yaml:"free_channel_id"`
	DelaySeconds  int    `yaml:"delay_seconds"`
	MinTextLen    int    `yaml:"min_text_len"`
	UpsellURL     string `yaml:"upsell_url"` // deep link under reposts; empty hides the button
}

// AdminConfig holds the admin panel listener settings.
type AdminConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // TAXILINE_ADMIN_PASSWORD
}

// Product is one purchasable tariff.
type Product struct {
	Name  string `yaml:"name"`
	Days  int    `yaml:"days"`
	Price int64  `yaml:"price"` // kopecks
	Trial bool   `yaml:"trial"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the process, if present, seeds the environment first.
func Load(path string) (*Config, error) {
	// Missing .env is fine; real deployments export variables directly.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv pulls secrets from the environment.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.MirrorToken, "TAXILINE_MIRROR_TOKEN")
	set(&c.Telegram.BotToken, "TAXILINE_BOT_TOKEN")
	set(&c.Database.Password, "TAXILINE_DB_PASSWORD")
	set(&c.Payments.TinkoffPassword, "TAXILINE_TINKOFF_PASSWORD")
	set(&c.Payments.YooKassaSecret, "TAXILINE_YOOKASSA_SECRET")
	set(&c.DeepSeek.APIKey, "TAXILINE_DEEPSEEK_KEY")
	set(&c.Admin.Password, "TAXILINE_ADMIN_PASSWORD")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Districts == "" {
		c.Districts = "districts.yml"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "taxiline"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "taxiline.db"
	}
	if c.Relay.DelaySeconds == 0 {
		c.Relay.DelaySeconds = 30
	}
	if c.Relay.MinTextLen == 0 {
		c.Relay.MinTextLen = 20
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = "127.0.0.1:8080"
	}
	if c.Admin.User == "" {
		c.Admin.User = "admin"
	}
	if c.DeepSeek.Model == "" {
		c.DeepSeek.Model = "deepseek-chat"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Telegram.ForumChatID == 0 {
		errs = append(errs, "telegram.forum_chat_id is required")
	}
	if c.Telegram.AllOrdersThread == 0 {
		errs = append(errs, "telegram.all_orders_thread is required")
	}
	for i, p := range c.Products {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("products[%d].name is required", i))
		}
		if p.Days <= 0 {
			errs = append(errs, fmt.Sprintf("products[%d].days must be positive", i))
		}
		if !p.Trial && p.Price <= 0 {
			errs = append(errs, fmt.Sprintf("products[%d].price must be positive", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ProductByName finds a tariff by its display name.
func (c *Config) ProductByName(name string) (Product, bool) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// TrialProduct returns the trial tariff, if configured.
func (c *Config) TrialProduct() (Product, bool) {
	for _, p := range c.Products {
		if p.Trial {
			return p, true
		}
	}
	return Product{}, false
}
