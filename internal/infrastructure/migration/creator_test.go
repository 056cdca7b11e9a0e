package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchPair(t *testing.T, dir, base string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".up.sql"), []byte("-- up"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".down.sql"), []byte("-- down"), 0644))
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"add price history":     "add_price_history",
		"Add-Price-History":     "add_price_history",
		"ADD_PRICE_HISTORY":     "add_price_history",
		"add__price__history":   "add_price_history",
		"Add Policies 123":      "add_policies_123",
		"   spaces   ":          "spaces",
		"special!@#$chars":      "specialchars",
		"trailing_":             "trailing",
		"_leading":              "leading",
		"":                      "",
	}
	for input, want := range cases {
		assert.Equal(t, want, sanitizeName(input), "name %q", input)
	}
}

func TestCreateMigrationScaffoldsPair(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add price history", "Price change ledger")
	require.NoError(t, err)

	assert.Equal(t, "000001", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_price_history.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_price_history.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_price_history")
	assert.Contains(t, string(up), "-- Description: Price change ledger")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
	assert.Contains(t, string(down), "Rollback for Price change ledger")
}

func TestCreateMigrationContinuesVersionSequence(t *testing.T) {
	dir := t.TempDir()
	touchPair(t, dir, "000001_create_erp_connections")
	touchPair(t, dir, "000004_create_synced_entities")

	mf, err := CreateMigration(dir, "add indexes", "")
	require.NoError(t, err)

	assert.Equal(t, "000005", mf.Version)
}

func TestCreateMigrationCreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "initial schema")
	require.NoError(t, err)
	require.NotNil(t, mf)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrationsSortedByVersion(t *testing.T) {
	dir := t.TempDir()
	touchPair(t, dir, "000003_create_pricing_tables")
	touchPair(t, dir, "000001_create_erp_connections")
	touchPair(t, dir, "000002_create_sync_tables")

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_create_erp_connections",
		"000002_create_sync_tables",
		"000003_create_pricing_tables",
	}, migrations)
}

func TestListMigrationsEmptyDirectory(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrationsMissingDirectory(t *testing.T) {
	migrations, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrationsIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	touchPair(t, dir, "000001_init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitkeep"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.up.sql"), 0755))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init"}, migrations)
}
