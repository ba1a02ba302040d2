// Package domain defines the persistence models for senders and their
// body-temperature readings. These types are mapped with GORM and form the
// core data layer of the intake bot.
//
// Table names are derived by the repository's naming strategy so that both
// tables live inside one logical dataset (see repo.Open).
package domain

import "time"

// DatetimeLayout is the fixed, second-precision layout used for
// Temperature.Datetime. Values are rendered in the configured local timezone,
// so lexical order equals chronological order within that zone.
const DatetimeLayout = "2006-01-02T15:04:05"

// User is a chat-platform sender, created on first contact and never mutated.
//
// Fields:
//   - ID: opaque platform user id, primary key.
//   - Name: display name at the time of first contact.
//   - AnonymizedName: one-way digest of Name used in dashboard links.
type User struct {
	ID             string `json:"id"              gorm:"column:id;type:varchar(64);primaryKey"`
	Name           string `json:"name"            gorm:"column:name;type:varchar(255);not null"`
	AnonymizedName string `json:"anonymized_name" gorm:"column:anonymized_name;type:varchar(64);not null;index"`
}

// Temperature is one appended reading. There is no primary key and no
// foreign-key constraint: the table is append-only and read analytically.
type Temperature struct {
	Datetime    string  `json:"datetime"    gorm:"column:datetime;type:varchar(19);not null;index:idx_temperature_user_day,priority:2"`
	UserID      string  `json:"user_id"     gorm:"column:user_id;type:varchar(64);not null;index:idx_temperature_user_day,priority:1"`
	Temperature float64 `json:"temperature" gorm:"column:temperature;not null"`
}

// ProcessedEvent records a webhook event id that has already been claimed
// for processing. Rows are only used to skip platform redeliveries and
// expire after a TTL.
type ProcessedEvent struct {
	EventID   string    `gorm:"column:event_id;type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
}

// FormatDatetime renders t (truncated to seconds) in loc using DatetimeLayout.
func FormatDatetime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Truncate(time.Second).Format(DatetimeLayout)
}

// LocalDayBounds returns the [start, end) Datetime strings covering the local
// calendar date of t in loc.
func LocalDayBounds(t time.Time, loc *time.Location) (start, end string) {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return day.Format(DatetimeLayout), day.AddDate(0, 0, 1).Format(DatetimeLayout)
}
