package db

import (
	"database/sql"

	libdb "bessanalytics/backend/libs/db"
)

// NewPostgres connects to Postgres using shared library helper.
func NewPostgres(dsn string, maxOpenConns int) (*sql.DB, error) {
	return libdb.NewPostgresDBWithOptions(dsn, libdb.PoolOptions{MaxOpenConns: maxOpenConns})
}
