package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("TUYAFUSION_CONFIG")
	defer os.Setenv("TUYAFUSION_CONFIG", originalEnv)

	os.Setenv("TUYAFUSION_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies run fails when the JWT secret is
// absent, since that would leave the command API open to forged tokens.
func TestRun_MissingJWTSecret(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
service:
  id: test-fusion

sources:
  - name: sharing
    base_url: "https://apigw.iotbing.com"
    client_id: "test-client"
    secret: "test-secret"
    uid: "az1234"

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18089
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("TUYAFUSION_CONFIG")
	defer os.Setenv("TUYAFUSION_CONFIG", originalEnv)
	os.Setenv("TUYAFUSION_CONFIG", configPath)

	originalSecret := os.Getenv("TUYAFUSION_JWT_SECRET")
	defer os.Setenv("TUYAFUSION_JWT_SECRET", originalSecret)
	os.Unsetenv("TUYAFUSION_JWT_SECRET")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("TUYAFUSION_CONFIG")
	defer os.Setenv("TUYAFUSION_CONFIG", originalEnv)

	os.Unsetenv("TUYAFUSION_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("TUYAFUSION_CONFIG")
	defer os.Setenv("TUYAFUSION_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("TUYAFUSION_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the full service with an unreachable
// cloud endpoint and no push broker. The fetch failure must be tolerated
// and the service must come up, then exit cleanly when the context ends.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
service:
  id: test-fusion

sources:
  - name: sharing
    base_url: "http://127.0.0.1:1"
    client_id: "test-client"
    secret: "test-secret"
    uid: "az1234"

reconcile:
  hysteresis: 1
  workers: 2
  fetch_timeout: 1
  refresh_interval: 0

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18090
  timeouts:
    read: 30
    write: 30
    idle: 60

security:
  jwt:
    secret: "test-secret-at-least-32-characters-long"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("TUYAFUSION_CONFIG")
	defer os.Setenv("TUYAFUSION_CONFIG", originalEnv)
	os.Setenv("TUYAFUSION_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
}
