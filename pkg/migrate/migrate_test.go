package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShippedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestCartMigrationCarriesConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_carts_table.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, want := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS carts_user_id_key ON carts (user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS cart_items_cart_product_key ON cart_items (cart_id, product_id)",
		"REFERENCES carts(id) ON DELETE CASCADE",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS cart_items",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}

func TestCreateSQLMigrationWritesValidTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Cart Notes!", now)
	require.NoError(t, err)
	require.Equal(t, "20261002093000_add_cart_notes.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationStaysAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC)

	first, err := CreateSQLMigration(dir, "first", now)
	require.NoError(t, err)
	second, err := CreateSQLMigration(dir, "second", now)
	require.NoError(t, err)
	require.Equal(t, "20261002093001_second.sql", filepath.Base(second))

	files, err := ListFiles(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, filepath.Base(first), files[0].Path)
	require.Equal(t, "second", files[1].Name)
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), "  !!  ", time.Now())
	require.Error(t, err)
}

func TestListFilesOrdersShippedMigrations(t *testing.T) {
	files, err := ListFiles(os.DirFS("migrations"))
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"create_users_table", "create_products_table", "create_carts_table"}, names)
}

func TestValidateRejectsBrokenBodies(t *testing.T) {
	cases := map[string]string{
		"goose Down":             "-- +goose Up\nSELECT 1;\n",
		"precedes Up":            "-- +goose Down\nSELECT 1;\n-- +goose Up\n",
		"unterminated":           "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"without StatementBegin": "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
		"nested StatementBegin":  "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementBegin\n-- +goose Down\n",
	}
	for want, body := range cases {
		t.Run(want, func(t *testing.T) {
			fsys := fstest.MapFS{"20260101000000_broken.sql": {Data: []byte(body)}}
			err := ValidateFS(fsys)
			require.Error(t, err)
			require.Contains(t, err.Error(), want)
		})
	}
}

func TestListFilesRejectsBadNamesAndDuplicates(t *testing.T) {
	ok := []byte("-- +goose Up\n-- +goose Down\n")
	_, err := ListFiles(fstest.MapFS{"1_bad.sql": {Data: ok}})
	require.Error(t, err)

	_, err = ListFiles(fstest.MapFS{
		"20260101000000_a.sql": {Data: ok},
		"20260101000000_b.sql": {Data: ok},
	})
	require.ErrorContains(t, err, "duplicate migration version")

	files, err := ListFiles(fstest.MapFS{"README.md": {Data: []byte("x")}})
	require.NoError(t, err)
	require.Empty(t, files)
}
