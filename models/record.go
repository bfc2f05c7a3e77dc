package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and export format of a trading date.
const DateLayout = "2006-01-02"

// Date is a calendar date (midnight UTC) without a time-of-day component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's own location and
// re-anchors it at midnight UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("models: invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// PriceRecord is one daily OHLCV observation. Nil pointers mean the page
// showed no usable value for that field; they are never coerced to zero.
type PriceRecord struct {
	Date        Date     `json:"date"`
	Open        *float64 `json:"open"`
	High        *float64 `json:"high"`
	Low         *float64 `json:"low"`
	Close       *float64 `json:"close"`
	AdjClose    *float64 `json:"adj_close"`
	Volume      *int64   `json:"volume"`
	DailyReturn *float64 `json:"daily_return"`
}

// RecordColumns is the export column order of a PriceRecord.
var RecordColumns = []string{
	"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume", "Daily Return",
}

// Values returns the record's fields in RecordColumns order. Nil fields are
// returned as untyped nil.
func (r PriceRecord) Values() []interface{} {
	return []interface{}{
		r.Date.String(),
		floatOrNil(r.Open),
		floatOrNil(r.High),
		floatOrNil(r.Low),
		floatOrNil(r.Close),
		floatOrNil(r.AdjClose),
		intOrNil(r.Volume),
		floatOrNil(r.DailyReturn),
	}
}

func floatOrNil(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
