package domain

import "time"

// SubmissionStatus tracks a plagiarism check through the external checker.
type SubmissionStatus string

const (
	SubmissionQueued   SubmissionStatus = "QUEUED"
	SubmissionChecking SubmissionStatus = "CHECKING"
	SubmissionDone     SubmissionStatus = "DONE"
	SubmissionFailed   SubmissionStatus = "FAILED"
)

// ThesisSubmission records one document handed to the plagiarism checker.
// The checker itself is an external collaborator; we only keep the report
// identifier it returns.
type ThesisSubmission struct {
	ID          string
	UserID      string
	Title       string
	DocumentURL string
	ReportID    string // assigned by the external checker
	Status      SubmissionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
