package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ENVIRONMENT", "API_BASE_URL", "SESSION_STORE", "NOTIFICATION_POLL_INTERVAL", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Fatalf("APIBaseURL=%q", cfg.APIBaseURL)
	}
	if cfg.SessionStore != StoreMemory {
		t.Fatalf("SessionStore=%q", cfg.SessionStore)
	}
	if cfg.NotificationPollInterval != 60*time.Second {
		t.Fatalf("NotificationPollInterval=%v", cfg.NotificationPollInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins=%v", cfg.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_BASE_URL", "https://api.resqnet.test/api/")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("NOTIFICATION_POLL_INTERVAL", "15")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("DEBUG", "true")

	cfg := LoadConfig()
	if cfg.APIBaseURL != "https://api.resqnet.test/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}
	if cfg.SessionStore != StoreRedis {
		t.Fatalf("SessionStore=%q", cfg.SessionStore)
	}
	if cfg.NotificationPollInterval != 15*time.Second || cfg.APITimeout != 3*time.Second {
		t.Fatalf("durations: poll=%v timeout=%v", cfg.NotificationPollInterval, cfg.APITimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("AllowedOrigins=%v", cfg.AllowedOrigins)
	}
	if cfg.Debug || !cfg.SessionCookieSecure {
		t.Fatalf("production must force Secure cookies and disable debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsIncompleteStore(t *testing.T) {
	cases := map[string]Config{
		"postgres without dsn": {SessionStore: StorePostgres},
		"redis without url":    {SessionStore: StoreRedis},
		"unknown store":        {SessionStore: "etcd"},
		"bad base url":         {SessionStore: StoreMemory, APIBaseURL: "localhost:8080"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg.Port = "3000"
			if cfg.APIBaseURL == "" {
				cfg.APIBaseURL = "http://localhost:8080/api"
			}
			cfg.APITimeout = time.Second
			cfg.NotificationPollInterval = time.Second
			cfg.SessionCookieName = "sid"
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.local")
	content := "# comment\nRESQNET_TEST_A=\"from-file\"\nRESQNET_TEST_B=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESQNET_TEST_A", "")
	t.Setenv("RESQNET_TEST_B", "from-env")

	loadEnvFile(path)
	if got := os.Getenv("RESQNET_TEST_A"); got != "from-file" {
		t.Fatalf("A=%q", got)
	}
	if got := os.Getenv("RESQNET_TEST_B"); got != "from-env" {
		t.Fatalf("B=%q", got)
	}
}

func TestCLIHome(t *testing.T) {
	t.Setenv("RESQNET_HOME", "/tmp/resq")
	if got := CLIHome(); got != "/tmp/resq" {
		t.Fatalf("CLIHome=%q", got)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
