package cache

import "time"

// sqlTimeLayout matches the text form MySQL returns for TIMESTAMP columns
// and SQLite's datetime('now') output. Storing this exact layout in UTC
// keeps textual comparisons against the engine's clock correct.
const sqlTimeLayout = "2006-01-02 15:04:05"

func formatSQLTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func parseSQLTime(s string) (time.Time, error) {
	return time.Parse(sqlTimeLayout, s)
}
