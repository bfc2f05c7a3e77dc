package models

// HistoryRequest is the payload for POST /api/v1/history.
type HistoryRequest struct {
	// Inputs is the list of symbols (e.g. "D05.SI") or full history URLs. Required.
	Inputs []string `json:"inputs" binding:"required,min=1,max=20"`

	// MaxAge allows serving a cached result for an input if it is younger
	// than MaxAge milliseconds. 0 disables the cache lookup.
	MaxAge int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}
