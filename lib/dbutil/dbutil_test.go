package dbutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSqliteWal(t *testing.T) {
	db, err := Config{File: filepath.Join(t.TempDir(), "utmb.db")}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestConfigDialect(t *testing.T) {
	require.Equal(t, DialectSqlite, Config{File: "a.db"}.Dialect())
	require.Equal(t, DialectLibsql, Config{File: "a.db", Url: "libsql://x.turso.io"}.Dialect())

	_, err := Config{}.OpenDB()
	require.Error(t, err)
}
