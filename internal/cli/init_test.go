package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GESTAO_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GESTAO_TEST_VALUE", "")
	os.Unsetenv("GESTAO_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("GESTAO_TEST_VALUE"); got != "from-file" {
		t.Errorf("GESTAO_TEST_VALUE = %q", got)
	}

	// Missing files are ignored.
	LoadEnvFile(filepath.Join(dir, "missing.env"))
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GESTAO_TEST_KEEP=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GESTAO_TEST_KEEP", "env")

	LoadEnvFile(path)
	if got := os.Getenv("GESTAO_TEST_KEEP"); got != "env" {
		t.Errorf("GESTAO_TEST_KEEP = %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	l := SetupLogger("debug")
	if l == nil || l.Component() != "app" {
		t.Fatalf("unexpected logger %+v", l)
	}
}
