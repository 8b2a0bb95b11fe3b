package model

import "time"

// StructuredSession is the session object produced by the metadata pipeline
// from the files at a staging location. It is what the archive ultimately
// stores; the lifecycle manager treats its contents as opaque beyond the
// identifiers needed for subject resolution.
type StructuredSession struct {
	ID        string `db:"id" json:"id"`
	Label     string `db:"label" json:"label"`
	Project   string `db:"project" json:"project"`
	SubjectID string `db:"subject_id" json:"subjectId"`
	Modality  string `db:"modality" json:"modality"`
	Scans     []Scan `json:"scans"`
}

// Scan is one series within a structured session.
type Scan struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"sessionId"`
	Label     string `db:"label" json:"label"`
	Type      string `db:"type" json:"type"`
	FileCount int    `db:"file_count" json:"fileCount"`
}

// Subject is an archive subject; sessions are attached to exactly one.
type Subject struct {
	ID         string    `db:"id" json:"id"`
	Project    string    `db:"project" json:"project"`
	Identifier string    `db:"identifier" json:"identifier"`
	Label      string    `db:"label" json:"label"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Workflow is the audit record opened around each archive attempt.
type Workflow struct {
	ID        string         `db:"id" json:"id"`
	Username  string         `db:"username" json:"username"`
	SessionID string         `db:"session_id" json:"sessionId"`
	Action    string         `db:"action" json:"action"`
	Status    WorkflowStatus `db:"status" json:"status"`
	Message   *string        `db:"message" json:"message,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

type OpenWorkflowParams struct {
	Username  string
	SessionID string
	Action    string
}

// PrearchiveCoords identify a slot in the general incoming-review area.
type PrearchiveCoords struct {
	Project    string
	Timestamp  string
	FolderName string
}

// ReviewRecord registers data sitting in the prearchive review area.
type ReviewRecord struct {
	ID         string     `db:"id" json:"id"`
	Project    string     `db:"project" json:"project"`
	Timestamp  string     `db:"timestamp" json:"timestamp"`
	FolderName string     `db:"folder_name" json:"folderName"`
	Location   string     `db:"location" json:"location"`
	ReviewCode ReviewCode `db:"review_code" json:"reviewCode"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

type CreateReviewParams struct {
	Project    string
	Timestamp  string
	FolderName string
	Location   string
	ReviewCode ReviewCode
}
