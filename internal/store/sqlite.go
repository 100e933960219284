package store

import (
	"database/sql"
	"regexp"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// sqliteDriverName matches dialect.SQLite.DriverName().
const sqliteDriverName = "sqlite3_fhirpath"

var sqliteRegisterOnce sync.Once

// registerSQLiteDriver registers a sqlite3 driver variant whose connections
// carry a REGEXP implementation. SQLite defines the REGEXP operator syntax
// but ships no regexp() function; the dialect's RegexMatch output needs one.
//
// X REGEXP Y calls regexp(Y, X), so the pattern is the first argument.
func registerSQLiteDriver() {
	sqliteRegisterOnce.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", func(pattern, value string) (bool, error) {
					re, err := regexp.Compile(pattern)
					if err != nil {
						return false, err
					}
					return re.MatchString(value), nil
				}, true)
			},
		})
	})
}
