// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobState tracks a print job through the service. Jobs move queued ->
// running -> resolved; the terminal ResultCode is only set on resolved jobs.
type JobState string

const (
	JobQueued   JobState = "queued"
	JobRunning  JobState = "running"
	JobResolved JobState = "resolved"
)

// PrintJob is the journal record of one print or status request.
type PrintJob struct {
	ID          uuid.UUID     `json:"id"`
	Destination string        `json:"destination"`
	Family      PrinterFamily `json:"family"`
	State       JobState      `json:"state"`
	Result      ResultCode    `json:"result,omitempty"`
	StatusOnly  bool          `json:"status_only"`
	Bytes       int           `json:"bytes"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// NewPrintJob creates a queued job record.
func NewPrintJob(destination string, family PrinterFamily, statusOnly bool, size int) *PrintJob {
	return &PrintJob{
		ID:          uuid.New(),
		Destination: destination,
		Family:      family,
		State:       JobQueued,
		StatusOnly:  statusOnly,
		Bytes:       size,
		CreatedAt:   time.Now().UTC(),
	}
}
