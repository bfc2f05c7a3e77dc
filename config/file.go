package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTickers is used when neither arguments nor a config file name any input.
var DefaultTickers = []string{"D05.SI", "O39.SI", "U11.SI"}

// File is the optional tickers file. A JSON document is valid YAML, so
// config.json and config.yaml are read by the same decoder.
type File struct {
	// Tickers may contain bare symbols or full history URLs.
	Tickers []string `yaml:"tickers"`

	// TickerNames maps a symbol to a display name for the export summary.
	TickerNames map[string]string `yaml:"ticker_names"`
}

// LoadFile reads a tickers file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ResolveInputs picks the batch inputs: args when present, otherwise the
// file's tickers, otherwise DefaultTickers.
func ResolveInputs(args []string, f *File) []string {
	if inputs := nonEmpty(args); len(inputs) > 0 {
		return inputs
	}
	if f != nil {
		if inputs := nonEmpty(f.Tickers); len(inputs) > 0 {
			return inputs
		}
	}
	return append([]string(nil), DefaultTickers...)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
