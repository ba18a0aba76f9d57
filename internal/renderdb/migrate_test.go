package renderdb

import (
	"os"
	"testing"
)

const migrationsDir = "../../migrations"

func TestMigrateUpAndVersion(t *testing.T) {
	if _, err := os.Stat(migrationsDir); err != nil {
		t.Skipf("migrations dir not available: %v", err)
	}
	db := setupTestDB(t)

	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	// Running again is a no-op.
	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Errorf("second MigrateUp failed: %v", err)
	}
}

func TestMigrateVersionBeforeAnyMigration(t *testing.T) {
	if _, err := os.Stat(migrationsDir); err != nil {
		t.Skipf("migrations dir not available: %v", err)
	}
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("version = %d dirty = %v, want 0 clean", version, dirty)
	}
}

func TestMigrateDown(t *testing.T) {
	if _, err := os.Stat(migrationsDir); err != nil {
		t.Skipf("migrations dir not available: %v", err)
	}
	db := setupTestDB(t)

	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("version = %d dirty = %v, want 0 clean after rollback", version, dirty)
	}
}
