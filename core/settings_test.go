package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadJSON_Defaults(t *testing.T) {
	var s SettingsStorage
	if err := s.LoadJSON([]byte(`{}`)); err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}

	if s.CommandPrefix() != "!" {
		t.Errorf("Expected prefix '!', got '%s'", s.CommandPrefix())
	}
	if s.DefaultCooldown() != 2*time.Second {
		t.Errorf("Expected default cooldown 2s, got %s", s.DefaultCooldown())
	}
	if s.UserRateLimit() != DefaultUserRateLimit {
		t.Errorf("Expected user rate limit %d, got %d", DefaultUserRateLimit, s.UserRateLimit())
	}
	if s.ThreadRateLimit() != DefaultThreadRateLimit {
		t.Errorf("Expected thread rate limit %d, got %d", DefaultThreadRateLimit, s.ThreadRateLimit())
	}
	if s.HandlerTimeout() != 0 {
		t.Errorf("Expected no handler timeout, got %s", s.HandlerTimeout())
	}
	if s.StateBackend() != "memory" {
		t.Errorf("Expected memory backend, got %s", s.StateBackend())
	}
	if got := s.CategoryCooldowns()["admin"]; got != 5*time.Second {
		t.Errorf("Expected admin cooldown 5s, got %s", got)
	}
}

func TestLoadJSON_Overrides(t *testing.T) {
	var s SettingsStorage
	err := s.LoadJSON([]byte(`{
		"CommandPrefix": "/",
		"OwnerIds": ["100", "", "100", "200"],
		"DefaultCooldown": "1m30s",
		"CategoryCooldowns": {"Economy": "10s", "music": "4s"},
		"UserRateLimit": 0,
		"ThreadRateLimit": 7,
		"HandlerTimeout": "30s"
	}`))
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}

	if s.CommandPrefix() != "/" {
		t.Errorf("Expected prefix '/', got '%s'", s.CommandPrefix())
	}
	if len(s.OwnerIds()) != 2 {
		t.Errorf("Expected 2 owner ids after dedup, got %v", s.OwnerIds())
	}
	if !s.IsOwner("200") || s.IsOwner("300") {
		t.Errorf("IsOwner returned wrong results for %v", s.OwnerIds())
	}
	if s.DefaultCooldown() != 90*time.Second {
		t.Errorf("Expected 90s default cooldown, got %s", s.DefaultCooldown())
	}
	categories := s.CategoryCooldowns()
	if categories["economy"] != 10*time.Second {
		t.Errorf("Expected economy cooldown 10s, got %s", categories["economy"])
	}
	if categories["music"] != 4*time.Second {
		t.Errorf("Expected music cooldown 4s, got %s", categories["music"])
	}
	if categories["game"] != 2*time.Second {
		t.Errorf("Expected untouched game cooldown 2s, got %s", categories["game"])
	}
	if s.UserRateLimit() != 0 {
		t.Errorf("Expected disabled user rate limit, got %d", s.UserRateLimit())
	}
	if s.ThreadRateLimit() != 7 {
		t.Errorf("Expected thread rate limit 7, got %d", s.ThreadRateLimit())
	}
	if s.HandlerTimeout() != 30*time.Second {
		t.Errorf("Expected handler timeout 30s, got %s", s.HandlerTimeout())
	}
}

func TestLoadJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad json", `{`},
		{"bad cooldown", `{"DefaultCooldown": "soon"}`},
		{"negative cooldown", `{"DefaultCooldown": "-1s"}`},
		{"bad category", `{"CategoryCooldowns": {"admin": "x"}}`},
		{"unknown backend", `{"StateBackend": "etcd"}`},
		{"redis without addr", `{"StateBackend": "redis"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("THREADBOT_REDIS_ADDR", "")
			var s SettingsStorage
			if err := s.LoadJSON([]byte(tt.raw)); err == nil {
				t.Errorf("Expected error for %s, got nil", tt.raw)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"AuthToken": "file-token", "Database": "file.db"}`), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("THREADBOT_TOKEN", "env-token")

	var s SettingsStorage
	if err := s.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.AuthToken() != "env-token" {
		t.Errorf("Expected env token to win, got '%s'", s.AuthToken())
	}
	if s.Database() != "file.db" {
		t.Errorf("Expected database 'file.db', got '%s'", s.Database())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		if got := CeilSeconds(tt.in); got != tt.want {
			t.Errorf("CeilSeconds(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
