package api

// Status values used in control responses.
const (
	statusStarted    = "started"
	statusAlready    = "already"
	statusBadRequest = "bad-request"
	statusNoBatch    = "no-batch"
)

// StatusResponse is the body of every non-streaming control response.
type StatusResponse struct {
	Status  string `json:"status"`
	BatchID string `json:"batchId,omitempty"`
	Error   string `json:"error,omitempty"`
}
