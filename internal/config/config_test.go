package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codenow/internal/models"
)

var configKeys = []string{
	"PORT", "MAX_EDITORS", "CORS_ORIGIN", "DEFAULT_PYTHON_CODE", "DEFAULT_JAVASCRIPT_CODE",
	"DEFAULT_LANGUAGE", "CURSOR_COLOR", "CURSOR_TIMEOUT", "MAX_BUFFER_BYTES", "PROMOTE_VIEWERS",
	"SEED_FILE", "REDIS_ADDR", "PRESENCE_CHANNEL", "OCCUPANCY_SCHEDULE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Port != "4000" || cfg.Addr() != ":4000" {
		t.Fatalf("expected port 4000, got %s", cfg.Port)
	}
	if cfg.MaxEditors != 2 {
		t.Fatalf("expected 2 editors, got %d", cfg.MaxEditors)
	}
	if !cfg.AllowsAnyOrigin() {
		t.Fatalf("expected open CORS, got %v", cfg.CORSOrigins)
	}
	if cfg.PythonCode != "# Start typing Python code..." || cfg.JavaScriptCode != "// Start typing JavaScript code..." {
		t.Fatalf("unexpected default buffers: %q %q", cfg.PythonCode, cfg.JavaScriptCode)
	}
	if cfg.DefaultLanguage != models.LangJavaScript {
		t.Fatalf("expected javascript, got %s", cfg.DefaultLanguage)
	}
	if cfg.CursorColor != "#FFFFFF" || cfg.CursorTimeout != 3*time.Second {
		t.Fatalf("unexpected cursor settings: %s %s", cfg.CursorColor, cfg.CursorTimeout)
	}
	if cfg.PromoteViewers {
		t.Fatal("viewer promotion should be off by default")
	}
	if cfg.OccupancySchedule != "@every 1m" {
		t.Fatalf("unexpected schedule %q", cfg.OccupancySchedule)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_EDITORS", "5")
	t.Setenv("CORS_ORIGIN", "http://a.test, http://b.test")
	t.Setenv("DEFAULT_PYTHON_CODE", "print(1)")
	t.Setenv("DEFAULT_LANGUAGE", "python")
	t.Setenv("CURSOR_TIMEOUT", "500ms")
	t.Setenv("PROMOTE_VIEWERS", "true")
	t.Setenv("OCCUPANCY_SCHEDULE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "9000" || cfg.MaxEditors != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" || cfg.AllowsAnyOrigin() {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.PythonCode != "print(1)" || cfg.DefaultLanguage != models.LangPython {
		t.Fatalf("unexpected buffers: %+v", cfg)
	}
	if cfg.CursorTimeout != 500*time.Millisecond || !cfg.PromoteViewers {
		t.Fatalf("unexpected cursor/promotion config: %+v", cfg)
	}
	if cfg.OccupancySchedule != "" {
		t.Fatalf("expected reporter disabled, got %q", cfg.OccupancySchedule)
	}
}

func TestLoadConfig_ZeroEditorsAllowed(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_EDITORS", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxEditors != 0 {
		t.Fatalf("expected 0, got %d", cfg.MaxEditors)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"non-numeric cap":  {"MAX_EDITORS", "two"},
		"negative cap":     {"MAX_EDITORS", "-1"},
		"bad duration":     {"CURSOR_TIMEOUT", "soon"},
		"zero duration":    {"CURSOR_TIMEOUT", "0s"},
		"unknown language": {"DEFAULT_LANGUAGE", "cobol"},
		"bad bool":         {"PROMOTE_VIEWERS", "maybe"},
		"zero buffer size": {"MAX_BUFFER_BYTES", "0"},
		"missing seed":     {"SEED_FILE", "/does/not/exist.yaml"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestLoadConfig_SeedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := "python: |\n  def main():\n      pass\njavascript: \"\"\nlanguage: python\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	t.Setenv("SEED_FILE", path)
	t.Setenv("DEFAULT_JAVASCRIPT_CODE", "let x = 1;")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PythonCode != "def main():\n    pass\n" {
		t.Fatalf("unexpected seeded python: %q", cfg.PythonCode)
	}
	if cfg.JavaScriptCode != "let x = 1;" {
		t.Fatalf("env should override seed, got %q", cfg.JavaScriptCode)
	}
	if cfg.DefaultLanguage != models.LangPython {
		t.Fatalf("expected python, got %s", cfg.DefaultLanguage)
	}
}

func TestLoadConfig_SeedFileEmptyBuffer(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("javascript: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	t.Setenv("SEED_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JavaScriptCode != "" {
		t.Fatalf("expected explicitly empty buffer, got %q", cfg.JavaScriptCode)
	}
}

func TestLoadConfig_BadSeedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("python: [unterminated"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	t.Setenv("SEED_FILE", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("UNIT_TEST_ENV", "value")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected env value, got %s", got)
	}

	t.Setenv("UNIT_TEST_ENV", "")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback value, got %s", got)
	}
}
