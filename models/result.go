package models

import "time"

// Status is the terminal state of one extraction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ExtractionResult is the outcome for one InputItem. It is assembled after
// normalization and treated as immutable once returned.
type ExtractionResult struct {
	Ticker  string        `json:"ticker"`
	Input   InputItem     `json:"input"`
	Records []PriceRecord `json:"records"`
	Status  Status        `json:"status"`
	Error   *ErrorDetail  `json:"error,omitempty"`

	// Degraded is set when the maximum range could not be selected and the
	// records come from whatever window the page had loaded.
	Degraded bool `json:"degraded,omitempty"`

	// RangeAttempts is the number of range-selection attempts made.
	RangeAttempts int `json:"range_attempts"`

	// RowsRendered is the valid-row count observed after scrolling.
	RowsRendered int `json:"rows_rendered"`

	// DroppedRows counts rows discarded because their date did not parse.
	DroppedRows int `json:"dropped_rows,omitempty"`

	// Duplicates counts rows discarded because their date was already seen.
	Duplicates int `json:"duplicates,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// OK reports whether the extraction succeeded.
func (r *ExtractionResult) OK() bool {
	return r.Status == StatusSuccess
}

// FirstDate returns the oldest record's date, or the zero Date.
func (r *ExtractionResult) FirstDate() Date {
	if len(r.Records) == 0 {
		return Date{}
	}
	return r.Records[0].Date
}

// LastDate returns the newest record's date, or the zero Date.
func (r *ExtractionResult) LastDate() Date {
	if len(r.Records) == 0 {
		return Date{}
	}
	return r.Records[len(r.Records)-1].Date
}

// BatchReport aggregates the results of one batch in input order.
type BatchReport struct {
	Results    []*ExtractionResult `json:"results"`
	Succeeded  int                 `json:"succeeded"`
	Failed     []string            `json:"failed,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Add appends a result and updates the counters.
func (b *BatchReport) Add(r *ExtractionResult) {
	b.Results = append(b.Results, r)
	if r.OK() {
		b.Succeeded++
		return
	}
	b.Failed = append(b.Failed, r.Input.RawValue)
}

// Fatal reports whether no item succeeded. This is the only batch outcome
// the caller should treat as a failure.
func (b *BatchReport) Fatal() bool {
	return b.Succeeded == 0
}

// Successes returns the successful results in input order.
func (b *BatchReport) Successes() []*ExtractionResult {
	out := make([]*ExtractionResult, 0, b.Succeeded)
	for _, r := range b.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// ByTicker maps each successful ticker label to its ordered records.
func (b *BatchReport) ByTicker() map[string][]PriceRecord {
	m := make(map[string][]PriceRecord, b.Succeeded)
	for _, r := range b.Successes() {
		m[r.Ticker] = r.Records
	}
	return m
}
