package store

import (
	"strconv"
	"strings"
)

// Driver names the SQL backend a Store talks to.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func ParseDriver(value string) (Driver, bool) {
	switch Driver(strings.ToLower(strings.TrimSpace(value))) {
	case DriverPostgres, "pgx", "postgresql":
		return DriverPostgres, true
	case DriverSQLite, "sqlite3":
		return DriverSQLite, true
	default:
		return "", false
	}
}

// rebind rewrites ? placeholders into $n for Postgres. Queries in this package
// never contain literal question marks.
func (d Driver) rebind(query string) string {
	if d != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lockClause is appended to scope reads inside a transaction. SQLite takes the
// database write lock at BEGIN (_txlock=immediate), so it needs none.
func (d Driver) lockClause() string {
	if d == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
