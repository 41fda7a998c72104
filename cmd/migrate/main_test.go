package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_create_wallet.up.sql", "000001_create_wallet.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := createMigration(dir, "add ledger index", zap.NewNop()); err != nil {
		t.Fatalf("createMigration() error = %v", err)
	}

	for _, name := range []string{"000002_add_ledger_index.up.sql", "000002_add_ledger_index.down.sql"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestCreateMigration_MissingDir(t *testing.T) {
	if err := createMigration(filepath.Join(t.TempDir(), "missing"), "x", zap.NewNop()); err == nil {
		t.Error("expected error for missing directory")
	}
}
