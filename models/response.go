package models

// HistoryResponse is the response for POST /api/v1/history.
type HistoryResponse struct {
	// Success is false only when no input produced any records.
	Success bool `json:"success"`

	Report *BatchReport `json:"report,omitempty"`

	// CacheHits lists the inputs served from the result cache.
	CacheHits []string `json:"cache_hits,omitempty"`

	TotalMs int64 `json:"total_ms"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "busy"
	Uptime  string       `json:"uptime"`
	Session SessionStats `json:"session"`
	Version string       `json:"version"`
}

// SessionStats reports the state of the shared browser session.
type SessionStats struct {
	Busy           bool  `json:"busy"`
	BatchesRun     int64 `json:"batches_run"`
	ItemsProcessed int64 `json:"items_processed"`
}
