package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats batches as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the batch as JSON.
func (f *JSONFormatter) Format(ctx context.Context, batch *Batch, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		// Quiet mode: just summary
		return encoder.Encode(batch.Summary)
	}

	return encoder.Encode(batch)
}
