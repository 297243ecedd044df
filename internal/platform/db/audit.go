package db

import "time"

// Audit holds the creation and change stamps carried by every record.
type Audit struct {
	Creator     string
	DateCreated time.Time
	ChangedBy   string
	DateChanged *time.Time
}

// LastUpdated is the change date, or the creation date for unchanged records.
func (a Audit) LastUpdated() time.Time {
	if a.DateChanged != nil {
		return *a.DateChanged
	}
	return a.DateCreated
}
