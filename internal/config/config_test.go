package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindEnvLocal_InCurrentDir(t *testing.T) {
	// Create temp directory structure
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=value"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in current directory")
	}
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	// Create temp directory structure: parent/.env.local, parent/child/
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	if err := os.Mkdir(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in parent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_InGrandparentDir(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to grandchild dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in grandparent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_ClosestWins(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Create .env.local in both grandparent and parent
	if err := os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}
	parentEnvPath := filepath.Join(parentDir, ".env.local")
	if err := os.WriteFile(parentEnvPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(parentEnvPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected closest .env.local (%s), got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_NotFound(t *testing.T) {
	// Create temp directory with no .env.local
	tmpDir := t.TempDir()

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result != "" {
		t.Errorf("expected empty string when no .env.local found, got %s", result)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	dbFile := filepath.Join(tmpDir, "db-path")
	if err := os.WriteFile(dbFile, []byte("/tmp/from-file.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", tmpDir)
	t.Setenv("NESTMIG_DB_PATH", "")
	t.Setenv("NESTMIG_DB_PATH_FILE", dbFile)
	t.Setenv("NESTMIG_NAMESPACE", "docs")
	t.Setenv("NESTMIG_HOME_SPACE", "Home")
	t.Setenv("NESTMIG_LOG_FORMAT", "json")
	t.Setenv("NESTMIG_WEBHOOK_URLS", "http://a.example/hook,http://b.example/hook")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/from-file.db" {
		t.Errorf("expected db path from file, got %q", cfg.DBPath)
	}
	if cfg.Namespace != "docs" || cfg.HomeSpace != "Home" || cfg.LogFormat != "json" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.WebhookURLs) != 2 || cfg.WebhookURLs[1] != "http://b.example/hook" {
		t.Errorf("unexpected webhook urls %v", cfg.WebhookURLs)
	}
}

func TestLoad_RejectsInvalidNamespace(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NESTMIG_NAMESPACE", "bad:ns")
	if _, err := Load(); err == nil {
		t.Error("expected invalid namespace to be rejected")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(os.Stderr, "debug", "json"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewLogger(os.Stderr, "loud", "text"); err == nil {
		t.Error("expected unknown level to be rejected")
	}
	if _, err := NewLogger(os.Stderr, "info", "xml"); err == nil {
		t.Error("expected unknown format to be rejected")
	}
}

func TestLoadMigration_Defaults(t *testing.T) {
	m, err := LoadMigration("", "wiki")
	if err != nil {
		t.Fatalf("LoadMigration failed: %v", err)
	}
	if !m.ExcludeHidden || !m.ExcludeSchemaItems || !m.AutoRedirect || m.DontMoveChildren {
		t.Errorf("unexpected defaults %+v", m)
	}
	if m.PreferenceHolder != DefaultPreferenceHolder {
		t.Errorf("expected preference holder %s, got %s", DefaultPreferenceHolder, m.PreferenceHolder)
	}
}

func TestLoadMigration_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migration.yaml")
	content := `namespace: docs
autoRedirect: false
dontMoveChildren: true
excludedSpaces: [Sandbox]
excludePatterns: ["**/Draft*"]
disabledActions:
  - docs:A/B_page
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMigration(path, "wiki")
	if err != nil {
		t.Fatalf("LoadMigration failed: %v", err)
	}
	if m.Namespace != "docs" || m.AutoRedirect || !m.DontMoveChildren {
		t.Errorf("unexpected options %+v", m)
	}
	if !m.ExcludeHidden {
		t.Error("expected unset options to keep their defaults")
	}
	if m.IsActionEnabled("docs:A/B_page") {
		t.Error("expected disabled key to be reported disabled")
	}
	if !m.IsActionEnabled("docs:A/C_page") {
		t.Error("expected other keys to be enabled")
	}

	m.DisableAction("docs:A/C_page")
	m.DisableAction("docs:A/C_page")
	if len(m.DisabledActions) != 2 {
		t.Errorf("expected DisableAction to be idempotent, got %v", m.DisabledActions)
	}
}

func TestLoadMigration_InvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migration.yaml")
	if err := os.WriteFile(path, []byte("excludePatterns: [\"[\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMigration(path, "wiki"); err == nil {
		t.Error("expected invalid pattern to be rejected")
	}
}
