// Package dbutil opens SQL databases, a local sqlite file or a remote libsql server.
package dbutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Config struct {
	// File is a local sqlite database, created if missing.
	File string `json:"file"`
	// Url is a remote libsql database (libsql://, https://, ws://), it takes precedence
	// over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// Dialect tells callers which flavor of SQL the opened database speaks.
type Dialect string

const (
	DialectSqlite Dialect = "sqlite"
	DialectLibsql Dialect = "libsql"
)

func (config Config) Dialect() Dialect {
	if config.Url != "" {
		return DialectLibsql
	}
	return DialectSqlite
}

func (config Config) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		url := config.Url
		if config.AuthToken != "" {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url = fmt.Sprintf("%s%sauthToken=%s", url, sep, config.AuthToken)
		}
		return sql.Open("libsql", url)
	}
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	return OpenSqlite(config.File)
}

// OpenSqlite opens (creating if needed) a sqlite database in WAL mode.
func OpenSqlite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, see
	// https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
