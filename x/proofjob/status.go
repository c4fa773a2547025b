package proofjob

import "strings"

// StatusView is the client-facing job status payload.
type StatusView struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	Message  string  `json:"message"`
	Result   *Result `json:"result,omitempty"`
}

// StatusOf maps a stored record to the client-facing view. A nil record
// (job id unknown to the store) is indistinguishable from a queued job.
func StatusOf(jobID string, rec *Record) StatusView {
	if rec == nil || rec.State == StatePending {
		return StatusView{
			JobID:    jobID,
			Status:   "pending",
			Progress: 0,
			Message:  "Job queued, waiting for worker...",
		}
	}

	switch rec.State {
	case StateProcessing:
		return StatusView{
			JobID:    jobID,
			Status:   "processing",
			Progress: rec.Progress,
			Message:  rec.Message,
		}
	case StateSuccess:
		return StatusView{
			JobID:    jobID,
			Status:   "completed",
			Progress: 100,
			Message:  "Proof generation complete",
			Result:   rec.Result,
		}
	case StateFailure:
		msg := rec.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return StatusView{
			JobID:    jobID,
			Status:   "failed",
			Progress: 0,
			Message:  msg,
		}
	default:
		// Custom states pass through lower-cased with their stored meta.
		return StatusView{
			JobID:    jobID,
			Status:   strings.ToLower(string(rec.State)),
			Progress: rec.Progress,
			Message:  rec.Message,
		}
	}
}
