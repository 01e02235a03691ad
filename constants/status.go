package constants

// JobStatus is the canonical status for rows in the processing catalog.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // in progress
	JobStatusSucceeded JobStatus = "SUCCEEDED" // stored and sinked
	JobStatusDropped   JobStatus = "DROPPED"   // OCR yielded insufficient text
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure (storage etc.)
)
