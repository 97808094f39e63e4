package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/backend"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LWM2MSYNC_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("LWM2MSYNC_CONFIG", "/etc/lwm2msync/config.yaml")
	if got := getConfigPath(); got != "/etc/lwm2msync/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LWM2MSYNC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

func TestRun_ConfigFailsValidation(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
service:
  id: test-sync

database:
  path: ""

security:
  jwt:
    secret: "short"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("LWM2MSYNC_CONFIG", configPath)
	t.Setenv("LWM2MSYNC_JWT_SECRET", "")
	t.Setenv("LWM2MSYNC_DATABASE_PATH", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail validation")
	}
	for _, want := range []string{"database.path", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("run() error = %v, want mention of %s", err, want)
		}
	}
}

const seedFile = `
profiles:
  - id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
    name: "tracker"
    attributes: ["/3/0/0", "/3/0/1"]
    telemetry: ["/3/0/9"]
    observe: ["/3/0/9"]
    key_names:
      /3/0/0: manufacturer
      /3/0/1: model
      /3/0/9: batteryLevel

devices:
  - endpoint: "urn:imei:3520990"
    device_name: "tracker-7"
    device_type: "asset-tracker"
    profile_id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
`

func TestSeedFromFile(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "profiles.yaml")
	if err := os.WriteFile(seedPath, []byte(seedFile), 0600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	db, err := database.Open(database.Config{Path: filepath.Join(dir, "sync.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	profiles := profile.NewSQLiteRepository(db.DB)
	credentials := backend.NewCredentialStore(db.DB)
	log := logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")

	if err := seedFromFile(ctx, seedPath, profiles, credentials, log); err != nil {
		t.Fatalf("seedFromFile() error = %v", err)
	}

	def, err := profiles.Get(ctx, uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"))
	if err != nil {
		t.Fatalf("profiles.Get() error = %v", err)
	}
	if def.KeyNames["/3/0/9"] != "batteryLevel" {
		t.Errorf("key name = %q, want batteryLevel", def.KeyNames["/3/0/9"])
	}

	cred, err := credentials.Get(ctx, "urn:imei:3520990")
	if err != nil {
		t.Fatalf("credentials.Get() error = %v", err)
	}
	if cred.DeviceName != "tracker-7" || !cred.Enabled {
		t.Errorf("credential = %+v, want enabled tracker-7", cred)
	}

	// A second pass is a no-op.
	if err := seedFromFile(ctx, seedPath, profiles, credentials, log); err != nil {
		t.Fatalf("second seedFromFile() error = %v", err)
	}
}

func TestSeedFromFile_Missing(t *testing.T) {
	log := logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")
	err := seedFromFile(context.Background(), "/nonexistent/profiles.yaml", nil, nil, log)
	if err == nil {
		t.Fatal("seedFromFile() should fail for a missing file")
	}
}

func writeMigrateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := "database:\n  path: " + filepath.Join(dir, "sync.db") + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("LWM2MSYNC_CONFIG", configPath)
	t.Setenv("LWM2MSYNC_JWT_SECRET", "migrate-test-secret-at-least-32-bytes!")
	t.Setenv("LWM2MSYNC_DATABASE_PATH", "")
	return filepath.Join(dir, "sync.db")
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateStatusAndDown(t *testing.T) {
	dbPath := writeMigrateConfig(t)

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	db.Close() //nolint:errcheck // reopened by the commands

	out, err := executeCommand(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	for _, want := range []string{"reporting_profiles", "device_credentials", "applied"} {
		if !strings.Contains(out, want) {
			t.Errorf("migrate status output missing %q:\n%s", want, out)
		}
	}

	out, err = executeCommand(t, "migrate", "down", "--steps", "1")
	if err != nil {
		t.Fatalf("migrate down error = %v", err)
	}
	if !strings.Contains(out, "reverted 20260301_091500") {
		t.Errorf("migrate down output = %q, want the credentials migration reverted", out)
	}

	out, err = executeCommand(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status error = %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("migrate status after down = %q, want a pending migration", out)
	}
}

func TestMigrateDownRejectsZeroSteps(t *testing.T) {
	writeMigrateConfig(t)

	if _, err := executeCommand(t, "migrate", "down", "--steps", "0"); err == nil {
		t.Fatal("migrate down --steps 0 should fail")
	}
}

func TestRootCommandRejectsArgs(t *testing.T) {
	if _, err := executeCommand(t, "unexpected"); err == nil {
		t.Fatal("root command should reject positional arguments")
	}
}
