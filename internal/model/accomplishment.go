package model

import (
	"strings"
	"time"
)

// DateLayout is the storage format for an accomplishment's calendar date.
const DateLayout = "2006-01-02"

// LocaleDateLayout renders dates the way the dashboard shows them (M/D/YYYY).
const LocaleDateLayout = "1/2/2006"

// Accomplishment is a single professional achievement owned by one viewer.
type Accomplishment struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Date        string    `json:"date" db:"date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewAccomplishment is the insert payload. The backend assigns ID and CreatedAt.
type NewAccomplishment struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// LocaleDate renders the stored date as M/D/YYYY. Unparseable dates are
// returned unchanged.
func (a Accomplishment) LocaleDate() string {
	return FormatLocaleDate(a.Date)
}

// FormatLocaleDate converts a YYYY-MM-DD date into M/D/YYYY.
func FormatLocaleDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format(LocaleDateLayout)
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ChangeType identifies the kind of row change reported by a change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"

	// ChangeFeedLost is the last event of a feed that ended without being
	// unsubscribed, such as a dropped connection. No row changed.
	ChangeFeedLost ChangeType = "FEED_LOST"
)

// ChangeEvent is a notification that a row owned by OwnerID changed.
// Consumers treat it as a refetch trigger only.
type ChangeEvent struct {
	Type     ChangeType `json:"type"`
	OwnerID  string     `json:"owner_id"`
	RecordID string     `json:"record_id"`
}
