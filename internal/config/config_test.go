package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DIGITALME_INSTANCE_ID", "INSTANCE_ID",
		"DIGITALME_API_TOKEN", "API_TOKEN",
		"DIGITALME_OPENROUTER_KEY", "OPENROUTER_KEY",
		"DIGITALME_TELEGRAM_ADMIN_TOKEN", "TELEGRAM_ADMIN_TOKEN",
		"DIGITALME_TELEGRAM_OWNER_ID", "TELEGRAM_OWNER_ID",
		"DIGITALME_PORT", "PORT",
		"DIGITALME_HOST", "DIGITALME_MODEL", "DIGITALME_DATA_FILE",
		"DIGITALME_GREEN_API_BASE", "DIGITALME_OPENROUTER_BASE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearRelayEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.OpenRouter.Temperature != 0.22 {
		t.Errorf("temperature = %v, want 0.22", cfg.OpenRouter.Temperature)
	}
	if cfg.OpenRouter.MaxTokens != 800 {
		t.Errorf("max_tokens = %d, want 800", cfg.OpenRouter.MaxTokens)
	}
	if cfg.Sessions.HistoryCap != 200 || cfg.Sessions.ContextTurns != 12 {
		t.Errorf("sessions defaults = %+v", cfg.Sessions)
	}
}

func TestLoad_JSON5File(t *testing.T) {
	clearRelayEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
	// webhook listener
	server: { port: 8080 },
	green_api: { instance_id: "1101", token: "tok" },
	openrouter: { model: "deepseek/deepseek-chat" },
}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.GreenAPI.InstanceID != "1101" || cfg.GreenAPI.Token != "tok" {
		t.Errorf("green_api = %+v", cfg.GreenAPI)
	}
	if cfg.OpenRouter.Model != "deepseek/deepseek-chat" {
		t.Errorf("model = %q", cfg.OpenRouter.Model)
	}
	// File did not touch these; defaults survive.
	if cfg.OpenRouter.APIBase != "https://openrouter.ai/api/v1" {
		t.Errorf("api_base = %q", cfg.OpenRouter.APIBase)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearRelayEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{green_api: {instance_id: "from-file"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INSTANCE_ID", "from-env")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("OPENROUTER_KEY", "or-key")
	t.Setenv("TELEGRAM_ADMIN_TOKEN", "tg-token")
	t.Setenv("TELEGRAM_OWNER_ID", "7799197049")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.GreenAPI.InstanceID != "from-env" {
		t.Errorf("instance_id = %q, want env value", cfg.GreenAPI.InstanceID)
	}
	if cfg.GreenAPI.Token != "secret" || cfg.OpenRouter.APIKey != "or-key" {
		t.Error("credential env vars not applied")
	}
	if cfg.Telegram.Token != "tg-token" || cfg.Telegram.OwnerID != 7799197049 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	clearRelayEnv(t)

	t.Setenv("INSTANCE_ID", "legacy")
	t.Setenv("DIGITALME_INSTANCE_ID", "prefixed")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GreenAPI.InstanceID != "prefixed" {
		t.Errorf("instance_id = %q, want prefixed name to win", cfg.GreenAPI.InstanceID)
	}
}

func TestLoad_InvalidOwnerIDIgnored(t *testing.T) {
	clearRelayEnv(t)

	t.Setenv("TELEGRAM_OWNER_ID", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.OwnerID != 0 {
		t.Errorf("owner_id = %d, want 0", cfg.Telegram.OwnerID)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearRelayEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config did not error")
	}
}

func TestMissingCredentials(t *testing.T) {
	clearRelayEnv(t)

	cfg := Default()
	missing := cfg.MissingCredentials()
	if len(missing) != 5 {
		t.Fatalf("missing = %v, want 5 entries", missing)
	}

	cfg.GreenAPI.InstanceID = "1101"
	cfg.GreenAPI.Token = "tok"
	cfg.OpenRouter.APIKey = "key"
	cfg.Telegram.Token = "tg"
	cfg.Telegram.OwnerID = 1
	if missing := cfg.MissingCredentials(); len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}
