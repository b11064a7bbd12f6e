package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaCreatesTables(t *testing.T) {
	ctx := context.Background()
	cfg := config.DBConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "schema.db")}
	client, err := db.New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, EnsureSchema(ctx, cfg, nil, client))
	// second run is a no-op
	require.NoError(t, EnsureSchema(ctx, cfg, nil, client))

	migrator := client.DB().Migrator()
	assert.True(t, migrator.HasTable("cart_lines"))
	assert.True(t, migrator.HasTable("image_metadata"))
	assert.True(t, migrator.HasIndex("cart_lines", "idx_cart_lines_product_id"))
}

func TestEnsureSchemaRequiresClient(t *testing.T) {
	err := EnsureSchema(context.Background(), config.DBConfig{Driver: config.DriverSQLite}, nil, nil)
	require.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	d, err := dialectFor(config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d)

	d, err = dialectFor(config.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d)

	_, err = dialectFor("oracle")
	assert.Error(t, err)
}

func TestShippedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestCartLinesMigrationEnforcesSingleLinePerProduct(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_cart_lines.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS cart_lines",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_lines_product_id ON cart_lines (product_id)",
		"DROP TABLE IF EXISTS cart_lines",
	} {
		assert.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestCreateSQLMigrationTableSkeleton(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Create Recently Viewed Products")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_create_recently_viewed_products.sql"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS recently_viewed_products")
	assert.Contains(t, string(data), "DROP TABLE IF EXISTS recently_viewed_products")
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateSQLMigrationVersionsNeverGoBackwards(t *testing.T) {
	dir := t.TempDir()
	future := "29991231235959_add_cart_line_notes.sql"
	require.NoError(t, os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	path, err := CreateSQLMigration(dir, "index cart lines by added_at")
	require.NoError(t, err)
	assert.Equal(t, "30000101000000_index_cart_lines_by_added_at.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))
}

func TestValidateFSRejectsNonPortableDDL(t *testing.T) {
	valid := "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id TEXT PRIMARY KEY);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n"
	require.NoError(t, ValidateFS(fstest.MapFS{"20261001090000_t.sql": {Data: []byte(valid)}}))

	cases := map[string]string{
		"missing down":    "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id TEXT);\n",
		"down before up":  "-- +goose Down\nDROP TABLE IF EXISTS t;\n-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id TEXT);\n",
		"bare create":     "-- +goose Up\nCREATE TABLE t (id TEXT);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"bare unique idx": "-- +goose Up\nCREATE UNIQUE INDEX idx ON t (id);\n-- +goose Down\nDROP INDEX IF EXISTS idx;\n",
		"bare drop":       "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id TEXT);\n-- +goose Down\nDROP TABLE t;\n",
		"serial":          "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id BIGSERIAL);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"autoincrement":   "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY AUTOINCREMENT);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"jsonb":           "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (images JSONB);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"uuid column":     "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (id uuid);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"now default":     "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (added_at TIMESTAMP DEFAULT now());\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
		"cast":            "-- +goose Up\nCREATE TABLE IF NOT EXISTS t (price NUMERIC DEFAULT '0'::numeric);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n",
	}
	for name, sql := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateFS(fstest.MapFS{"20261001090000_t.sql": {Data: []byte(sql)}})
			assert.Error(t, err)
		})
	}

	err := ValidateFS(fstest.MapFS{"add_t.sql": {Data: []byte(valid)}})
	assert.Error(t, err, "unversioned filename")

	err = ValidateFS(fstest.MapFS{
		"20261001090000_a.sql": {Data: []byte(valid)},
		"20261001090000_b.sql": {Data: []byte(valid)},
	})
	assert.Error(t, err, "duplicate version")
}

func TestValidateFSIgnoresCommentedSQL(t *testing.T) {
	sql := "-- +goose Up\n-- CREATE TABLE legacy (id SERIAL);\nCREATE TABLE IF NOT EXISTS t (id TEXT);\n-- +goose Down\nDROP TABLE IF EXISTS t;\n"
	require.NoError(t, ValidateFS(fstest.MapFS{"20261001090000_t.sql": {Data: []byte(sql)}}))
}
