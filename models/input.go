package models

// InputItem is one resolved batch entry. It is created once per raw input
// and never modified afterwards.
type InputItem struct {
	// RawValue is the input exactly as supplied (a symbol or a URL).
	RawValue string `json:"raw_value"`

	// ResolvedSymbol labels the result; inferred from the URL path when the
	// input was a URL.
	ResolvedSymbol string `json:"resolved_symbol"`

	// SourceURL is the page the browser navigates to.
	SourceURL string `json:"source_url"`
}
