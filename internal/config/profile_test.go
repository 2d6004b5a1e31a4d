package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origFunc := configDirFunc
	configDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	t.Cleanup(func() {
		configDirFunc = origFunc
	})
	return tmpDir
}

func mustAdd(t *testing.T, name, connStr string) {
	t.Helper()
	if err := Add(name, connStr); err != nil {
		t.Fatalf("Add(%q) failed: %v", name, err)
	}
}

func TestAdd_CreatesAndUpdates(t *testing.T) {
	setupTestConfig(t)

	mustAdd(t, "prod", "postgres://localhost/prod_v1")
	mustAdd(t, "dev", "postgres://localhost/dev")
	mustAdd(t, "prod", "postgres://localhost/prod_v2")

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Name != "prod" || profiles[0].ConnStr != "postgres://localhost/prod_v2" {
		t.Errorf("profiles[0] = %+v, want updated prod", profiles[0])
	}
	if profiles[1].Name != "dev" {
		t.Errorf("profiles[1].Name = %q, want dev", profiles[1].Name)
	}
}

func TestAdd_PreservesOtherSections(t *testing.T) {
	dir := setupTestConfig(t)

	content := []byte("collect:\n  threshold_ms: 250\nwatch:\n  schedule: \"@hourly\"\n")
	if err := os.WriteFile(filepath.Join(dir, configFileName), content, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	mustAdd(t, "prod", "postgres://prod-host/db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Collect.ThresholdMs != 250 {
		t.Errorf("threshold_ms = %v, want 250", cfg.Collect.ThresholdMs)
	}
	if cfg.Watch.Schedule != "@hourly" {
		t.Errorf("schedule = %q, want @hourly", cfg.Watch.Schedule)
	}
	if len(cfg.Profiles) != 1 {
		t.Errorf("expected 1 profile, got %d", len(cfg.Profiles))
	}
}

func TestRemove(t *testing.T) {
	setupTestConfig(t)

	mustAdd(t, "prod", "postgres://localhost/prod")
	mustAdd(t, "dev", "postgres://localhost/dev")

	if err := Remove("staging"); err == nil {
		t.Error("expected error when removing non-existent profile")
	}
	if err := Remove("prod"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "dev" {
		t.Errorf("remaining profiles = %+v, want only dev", profiles)
	}
}

func TestRemove_ClearsDefault(t *testing.T) {
	setupTestConfig(t)

	mustAdd(t, "prod", "postgres://localhost/prod")
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if err := Remove("prod"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	name, err := GetDefault()
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if name != "" {
		t.Errorf("default = %q, want empty", name)
	}
}

func TestRemove_NoConfigFile(t *testing.T) {
	setupTestConfig(t)

	if err := Remove("prod"); err == nil {
		t.Fatal("expected error when no config file exists")
	}
}

func TestResolve(t *testing.T) {
	setupTestConfig(t)

	if _, err := Resolve("anything"); err == nil {
		t.Error("expected error when no config file exists")
	}

	mustAdd(t, "prod", "postgres://prod-host/db")

	connStr, err := Resolve("prod")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if connStr != "postgres://prod-host/db" {
		t.Errorf("ConnStr = %q", connStr)
	}

	if _, err := Resolve("nonexistent"); err == nil {
		t.Error("expected error for non-existent profile")
	}
}

func TestDefault_SetAndClear(t *testing.T) {
	setupTestConfig(t)

	if err := SetDefault("nonexistent"); err == nil {
		t.Error("expected error when setting a default without profiles")
	}

	mustAdd(t, "prod", "postgres://prod-host/db")
	mustAdd(t, "dev", "postgres://localhost/db")

	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if name, _ := GetDefault(); name != "prod" {
		t.Errorf("default = %q, want prod", name)
	}

	if err := ClearDefault(); err != nil {
		t.Fatalf("ClearDefault failed: %v", err)
	}
	if name, _ := GetDefault(); name != "" {
		t.Errorf("default = %q, want empty", name)
	}
}

func TestResolveConnStr(t *testing.T) {
	setupTestConfig(t)

	connStr, err := ResolveConnStr("", "")
	if err != nil || connStr != "" {
		t.Fatalf("no config: got %q, %v; want empty, nil", connStr, err)
	}

	mustAdd(t, "prod", "postgres://prod-host/db")
	mustAdd(t, "dev", "postgres://localhost/db")
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	tests := []struct {
		name    string
		db      string
		profile string
		want    string
		wantErr bool
	}{
		{"db flag wins", "postgres://direct/db", "dev", "postgres://direct/db", false},
		{"profile flag", "", "dev", "postgres://localhost/db", false},
		{"default fallback", "", "", "postgres://prod-host/db", false},
		{"unknown profile", "", "missing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConnStr(tt.db, tt.profile)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConnStr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestList_EmptyConfig(t *testing.T) {
	setupTestConfig(t)

	profiles, err := List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles != nil {
		t.Errorf("expected nil profiles, got %v", profiles)
	}
}
