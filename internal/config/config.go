package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the top-level vitrine configuration.
type Config struct {
	Shop       ShopConfig      `json:"shop"`
	Store      StoreConfig     `json:"store"`
	Connectors ConnectorConfig `json:"connectors"`
	Backup     *BackupConfig   `json:"backup,omitempty"`
	API        APIConfig       `json:"api"`
}

// ShopConfig holds storefront-level settings.
type ShopConfig struct {
	ID      string `json:"id"`
	DataDir string `json:"data_dir"`
	// AdminIDs are platform-prefixed actor ids (e.g. "telegram:12345",
	// "slack:U0A1B2C") allowed to mutate catalogs and settle tickets.
	AdminIDs   []string `json:"admin_ids,omitempty"`
	AdminRoles []string `json:"admin_roles,omitempty"`
}

// StoreConfig selects the catalog persistence backend.
type StoreConfig struct {
	Driver string `json:"driver,omitempty"` // "sqlite" (default) or "file"
	Path   string `json:"path,omitempty"`   // override, default under data_dir
}

// ConnectorConfig holds settings for the platform gateways.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token       string  `json:"token"`
	StaffChatID int64   `json:"staff_chat_id"`
	AllowFrom   []int64 `json:"allow_from,omitempty"`
}

// SlackConfig holds Slack app settings.
type SlackConfig struct {
	BotToken string   `json:"bot_token"`
	AppToken string   `json:"app_token"`
	Admins   []string `json:"admins,omitempty"` // Slack user IDs invited to ticket channels
}

// BackupConfig holds catalog snapshot settings.
type BackupConfig struct {
	Schedule string `json:"schedule"` // cron expression or @every form
	Dir      string `json:"dir,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with VITRINE_
// prefix. A .env file in the working directory is honored when present.
func LoadFromEnv() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Shop: ShopConfig{
			ID:      getenv("VITRINE_SHOP_ID", "default"),
			DataDir: getenv("VITRINE_DATA_DIR", "/data"),
		},
		Store: StoreConfig{
			Driver: getenv("VITRINE_STORE_DRIVER", "sqlite"),
		},
		API: APIConfig{
			Host: getenv("VITRINE_API_HOST", "0.0.0.0"),
			Port: getenvInt("VITRINE_API_PORT", 8080),
			Key:  os.Getenv("VITRINE_API_KEY"),
		},
	}

	if ids := os.Getenv("VITRINE_ADMIN_IDS"); ids != "" {
		cfg.Shop.AdminIDs = splitList(ids)
	}
	if roles := os.Getenv("VITRINE_ADMIN_ROLES"); roles != "" {
		cfg.Shop.AdminRoles = splitList(roles)
	}

	if token := os.Getenv("VITRINE_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if chat := os.Getenv("VITRINE_TELEGRAM_STAFF_CHAT"); chat != "" {
			id, err := strconv.ParseInt(chat, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: VITRINE_TELEGRAM_STAFF_CHAT: invalid integer %q", chat)
			}
			cfg.Connectors.Telegram.StaffChatID = id
		}
		if ids := os.Getenv("VITRINE_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: VITRINE_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	if bot := os.Getenv("VITRINE_SLACK_BOT_TOKEN"); bot != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken: bot,
			AppToken: os.Getenv("VITRINE_SLACK_APP_TOKEN"),
			Admins:   splitList(os.Getenv("VITRINE_SLACK_ADMINS")),
		}
	}

	if schedule := os.Getenv("VITRINE_BACKUP_SCHEDULE"); schedule != "" {
		cfg.Backup = &BackupConfig{
			Schedule: schedule,
			Dir:      os.Getenv("VITRINE_BACKUP_DIR"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Shop.ID == "" {
		errs = append(errs, "shop.id is required")
	}
	if c.Shop.DataDir == "" {
		errs = append(errs, "shop.data_dir is required")
	}

	switch c.Store.Driver {
	case "", "sqlite", "file":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be \"sqlite\" or \"file\", got %q", c.Store.Driver))
	}

	if c.Connectors.Telegram != nil {
		if c.Connectors.Telegram.Token == "" {
			errs = append(errs, "connectors.telegram.token is required")
		}
		if c.Connectors.Telegram.StaffChatID == 0 {
			errs = append(errs, "connectors.telegram.staff_chat_id is required")
		}
	}
	if c.Connectors.Slack != nil {
		if c.Connectors.Slack.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if c.Connectors.Slack.AppToken == "" {
			errs = append(errs, "connectors.slack.app_token is required")
		}
	}

	if c.Backup != nil && c.Backup.Schedule == "" {
		errs = append(errs, "backup.schedule is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
