package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/scoutledger/backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestReceiptMigrationGuardsValues(t *testing.T) {
	content := readMigration(t, "*_create_stats_and_receipts.sql")

	checks := []string{
		"CREATE TABLE points_receipts",
		"CREATE TABLE tokens_receipts",
		"value numeric(78, 0) NOT NULL CHECK (value >= 0)",
		"CONSTRAINT ux_user_weekly_stats_user_week UNIQUE (user_id, week)",
		"DROP TABLE IF EXISTS tokens_receipts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestClaimMigrationPinsOneSnapshotPerWeek(t *testing.T) {
	content := readMigration(t, "*_create_claims.sql")

	checks := []string{
		"CONSTRAINT ux_weekly_claims_week UNIQUE (week)",
		"CONSTRAINT ux_claim_submissions_tx UNIQUE (tx_hash)",
		"CONSTRAINT ux_scout_merge_events_from UNIQUE (merged_from_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLedgerMigrationAllowsOneGemsPayoutPerWeek(t *testing.T) {
	content := readMigration(t, "*_create_builder_ledger.sql")
	if !strings.Contains(content, "ux_builder_events_gems_payout ON builder_events (builder_id, week) WHERE type = 'gems_payout'") {
		t.Fatal("missing gems_payout uniqueness index")
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("ValidateFS(embedded): %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateFSRejectsUnbalancedStatements(t *testing.T) {
	fsys := fstest.MapFS{
		"20250101000000_broken.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
	}
	if err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected unbalanced StatementBegin to fail")
	}
}

func TestValidateFSRejectsDuplicateVersion(t *testing.T) {
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	fsys := fstest.MapFS{
		"20250101000000_a.sql": {Data: body},
		"20250101000000_b.sql": {Data: body},
	}
	if err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected duplicate version to fail")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Season Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_season_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
