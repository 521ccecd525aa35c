package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/epimex/screenbot/internal/models"
)

// nilIfEmpty maps "" to NULL for optional text columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// appointmentWithin reports whether the appointment falls between now and
// now+within. Date and time are stored as text, so filtering happens here
// instead of in SQL to keep both backends consistent.
func appointmentWithin(a models.Appointment, within time.Duration) bool {
	when, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, time.Local)
	if err != nil {
		return false
	}
	now := time.Now()
	return when.After(now) && when.Before(now.Add(within))
}

// countGrouped runs a two-column (label, count) aggregation query and fills
// the destination map.
func countGrouped(db *sql.DB, query string, dest map[string]int) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to run aggregation query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return fmt.Errorf("failed to scan aggregation row: %w", err)
		}
		dest[label] = n
	}
	return rows.Err()
}
