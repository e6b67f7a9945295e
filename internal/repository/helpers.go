package repository

import "time"

// nullableTime maps the zero time to NULL so unset expiries do not end up
// as year-one timestamps in the database.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
