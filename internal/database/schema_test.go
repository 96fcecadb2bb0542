package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	expected := []string{
		"00001_create_sellers_table.sql",
		"00002_create_products_table.sql",
		"00003_create_updated_at_trigger.sql",
	}

	for _, migration := range expected {
		if _, err := os.Stat(filepath.Join(migrationsDir, migration)); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveGooseDirectives(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	count := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		count++

		content := readMigration(t, file.Name())
		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration file %s missing %q directive", file.Name(), directive)
			}
		}
	}

	if count == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestSellersTableConstraints(t *testing.T) {
	content := readMigration(t, "00001_create_sellers_table.sql")

	for _, fragment := range []string{
		"CREATE TABLE IF NOT EXISTS sellers",
		"DROP TABLE IF EXISTS sellers",
		"phone VARCHAR(32) UNIQUE NOT NULL",
		"'new', 'name_entered', 'complete'",
		"'pending', 'active', 'deactivated'",
		"is_active BOOLEAN",
		"featured BOOLEAN",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("sellers migration missing %q", fragment)
		}
	}
}

func TestProductsTableConstraints(t *testing.T) {
	content := readMigration(t, "00002_create_products_table.sql")

	for _, fragment := range []string{
		"CREATE TABLE IF NOT EXISTS products",
		"DROP TABLE IF EXISTS products",
		"CHECK (price >= 0)",
		"CHECK (stock >= 0)",
		"'rackets', 'shoes', 'accessories', 'apparel', 'bags', 'shuttles'",
		"jsonb_array_length(images) <= 5",
		"FOREIGN KEY (seller_id) REFERENCES sellers(id) ON DELETE CASCADE",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("products migration missing %q", fragment)
		}
	}
}
