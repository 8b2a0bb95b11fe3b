package model

import (
	"time"
)

// SessionRecord tracks one imaging session staged for direct archiving.
// Project+Name (plus Tag) form the natural key used for duplicate detection;
// Location is the idempotency key while the record is in a non-error state.
type SessionRecord struct {
	ID            string        `db:"id" json:"id"`
	Project       string        `db:"project" json:"project"`
	Subject       string        `db:"subject" json:"subject"`
	Name          string        `db:"name" json:"name"`
	Timestamp     string        `db:"timestamp" json:"timestamp"`
	FolderName    string        `db:"folder_name" json:"folderName"`
	Tag           *string       `db:"tag" json:"tag,omitempty"`
	Visit         *string       `db:"visit" json:"visit,omitempty"`
	Protocol      *string       `db:"protocol" json:"protocol,omitempty"`
	TimeZone      *string       `db:"time_zone" json:"timeZone,omitempty"`
	Source        *string       `db:"source" json:"source,omitempty"`
	ScanDate      *time.Time    `db:"scan_date" json:"scanDate,omitempty"`
	ScanTime      *string       `db:"scan_time" json:"scanTime,omitempty"`
	Location      string        `db:"location" json:"location"`
	Status        SessionStatus `db:"status" json:"status"`
	Message       *string       `db:"message" json:"message,omitempty"`
	UploadDate    time.Time     `db:"upload_date" json:"uploadDate"`
	LastBuiltDate *time.Time    `db:"last_built_date" json:"lastBuiltDate,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	Project    string
	Subject    string
	Name       string
	Timestamp  string
	FolderName string
	Tag        *string
	Visit      *string
	Protocol   *string
	TimeZone   *string
	Source     *string
	ScanDate   *time.Time
	ScanTime   *string
	Location   string
}
