package sqlstore

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"readme.sql":     {Data: []byte("-- no version")},
		"notes.txt":      {Data: []byte("not sql")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "001_first.sql", migrations[0].Name)
	assert.Equal(t, "SELECT 1;", migrations[0].SQL)
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{dialectPostgres, dialectMySQL} {
		t.Run(dialect, func(t *testing.T) {
			sub, err := fsSub(dialect)
			require.NoError(t, err)
			migrations, err := LoadMigrations(sub)
			require.NoError(t, err)
			require.NotEmpty(t, migrations)
			assert.Equal(t, 1, migrations[0].Version)
			assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS appointments")
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header
CREATE TABLE a (
    id INT
);

INSERT INTO a VALUES (1);
SELECT 1`

	stmts := SplitStatements(sql)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id INT\n)", stmts[0])
	assert.Equal(t, "INSERT INTO a VALUES (1)", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestDialectOf(t *testing.T) {
	d, err := dialectOf("pgx")
	require.NoError(t, err)
	assert.Equal(t, dialectPostgres, d)

	d, err = dialectOf("mysql")
	require.NoError(t, err)
	assert.Equal(t, dialectMySQL, d)

	_, err = dialectOf("sqlite3")
	assert.Error(t, err)
}
