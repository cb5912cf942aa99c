// Package sqlxrepos implements the domain repositories against PostgreSQL
// using sqlx for struct scanning.
package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/krysselista/backend/core"
)

// getExec picks the executor for a query: an explicit one passed by the
// service (e.g. a transaction) or the repository's default DB.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}

// trapNoRowsErr maps psql "no rows" to the given domain sentinel.
func trapNoRowsErr(err, notFound error) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return err
}
