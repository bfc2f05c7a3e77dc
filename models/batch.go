package models

// BatchRequest is the payload for POST /api/v1/batch/history.
type BatchRequest struct {
	// Inputs is the list of symbols or history URLs. Required.
	Inputs []string `json:"inputs" binding:"required,min=1,max=50"`

	// WebhookURL receives a batch.completed event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/history.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Report    *BatchReport `json:"report,omitempty"`
}

// BatchJob tracks an in-progress batch extraction.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Report    *BatchReport
	CreatedAt int64 // unix timestamp
}
