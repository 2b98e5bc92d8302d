package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "shop": {
    "id": "test-shop",
    "data_dir": "/tmp/vitrine-test",
    "admin_ids": ["telegram:100", "slack:U1"],
    "admin_roles": ["staff"]
  },
  "store": {
    "driver": "sqlite"
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "staff_chat_id": -100200300,
      "allow_from": [100, 200]
    },
    "slack": {
      "bot_token": "xoxb-test",
      "app_token": "xapp-test",
      "admins": ["U1"]
    }
  },
  "backup": {
    "schedule": "@every 1h",
    "dir": "/tmp/vitrine-backups"
  },
  "api": {
    "host": "0.0.0.0",
    "port": 8080,
    "api_key": "admin-key"
  }
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(validJSON), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Shop.ID != "test-shop" {
		t.Errorf("shop id %q", cfg.Shop.ID)
	}
	if len(cfg.Shop.AdminIDs) != 2 || cfg.Shop.AdminIDs[0] != "telegram:100" {
		t.Errorf("admin ids %v", cfg.Shop.AdminIDs)
	}
	if cfg.Connectors.Telegram == nil || cfg.Connectors.Telegram.StaffChatID != -100200300 {
		t.Errorf("telegram config %+v", cfg.Connectors.Telegram)
	}
	if cfg.Connectors.Slack == nil || cfg.Connectors.Slack.AppToken != "xapp-test" {
		t.Errorf("slack config %+v", cfg.Connectors.Slack)
	}
	if cfg.Backup == nil || cfg.Backup.Schedule != "@every 1h" {
		t.Errorf("backup config %+v", cfg.Backup)
	}
	if cfg.API.Key != "admin-key" {
		t.Errorf("api key %q", cfg.API.Key)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := &Config{
		Store:      StoreConfig{Driver: "redis"},
		Connectors: ConnectorConfig{Telegram: &TelegramConfig{}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{
		"shop.id is required",
		"shop.data_dir is required",
		"store.driver",
		"connectors.telegram.token is required",
		"connectors.telegram.staff_chat_id is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in: %v", want, err)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VITRINE_SHOP_ID", "env-shop")
	t.Setenv("VITRINE_DATA_DIR", t.TempDir())
	t.Setenv("VITRINE_ADMIN_IDS", "telegram:1, telegram:2")
	t.Setenv("VITRINE_TELEGRAM_TOKEN", "tok")
	t.Setenv("VITRINE_TELEGRAM_STAFF_CHAT", "-42")
	t.Setenv("VITRINE_API_PORT", "9090")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Shop.ID != "env-shop" {
		t.Errorf("shop id %q", cfg.Shop.ID)
	}
	if len(cfg.Shop.AdminIDs) != 2 || cfg.Shop.AdminIDs[1] != "telegram:2" {
		t.Errorf("admin ids %v", cfg.Shop.AdminIDs)
	}
	if cfg.Connectors.Telegram.StaffChatID != -42 {
		t.Errorf("staff chat %d", cfg.Connectors.Telegram.StaffChatID)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("port %d", cfg.API.Port)
	}
}

func TestLoadFromEnvBadInteger(t *testing.T) {
	t.Setenv("VITRINE_SHOP_ID", "env-shop")
	t.Setenv("VITRINE_DATA_DIR", t.TempDir())
	t.Setenv("VITRINE_TELEGRAM_TOKEN", "tok")
	t.Setenv("VITRINE_TELEGRAM_STAFF_CHAT", "not-a-number")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for bad staff chat id")
	}
}
