package report

import (
	"bytes"
	"encoding/json"
	"io"
)

// JSONWriter outputs change reports as a single JSON document for tool
// integration. URLs are written unescaped so that query-like characters
// stay readable.
type JSONWriter struct {
	baseWriter
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, each line starting with prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonDocument adds the derived recommendations to a ChangeReport.
type jsonDocument struct {
	*ChangeReport
	Recommendations []string `json:"recommendations,omitempty"`
}

// Write outputs the change report followed by a newline.
func (w *JSONWriter) Write(report *ChangeReport) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}

	if err := enc.Encode(jsonDocument{
		ChangeReport:    report,
		Recommendations: recommendations(report.Changes),
	}); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
