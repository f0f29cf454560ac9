package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK      bool           `json:"ok" yaml:"ok"`
	Data    any            `json:"data,omitempty" yaml:"data,omitempty"`
	Summary string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Notice  string         `json:"notice,omitempty" yaml:"notice,omitempty"`
	Meta    map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error" yaml:"error"`
	Code  string `json:"code" yaml:"code"`
	Hint  string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto Format = iota // Auto-detect: TTY → Styled, non-TTY → JSON
	FormatJSON
	FormatYAML
	FormatMarkdown // Literal Markdown syntax (portable, pipeable)
	FormatStyled   // ANSI styled output (forced, even when piped)
	FormatQuiet
	FormatIDs
	FormatCount
)

// ParseFormat maps a config/flag value to a Format.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", "auto":
		return FormatAuto, true
	case "json":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "markdown", "md":
		return FormatMarkdown, true
	case "styled":
		return FormatStyled, true
	case "quiet":
		return FormatQuiet, true
	case "ids":
		return FormatIDs, true
	case "count":
		return FormatCount, true
	default:
		return FormatAuto, false
	}
}

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
	// JQ, when set, filters JSON output through a jq expression.
	JQ string
}

// Writer handles all output formatting.
type Writer struct {
	opts Options
}

// New creates a new output writer.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Writer{opts: opts}
}

// Format returns the configured format.
func (w *Writer) Format() Format { return w.opts.Format }

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:    false,
		Error: e.Message,
		Code:  e.Code,
		Hint:  e.Hint,
	}
	return w.write(resp)
}

// resolve turns FormatAuto into styled output on a terminal and JSON
// everywhere else.
func (w *Writer) resolve() Format {
	if w.opts.Format != FormatAuto {
		return w.opts.Format
	}
	if _, tty := terminalInfo(w.opts.Writer); tty {
		return FormatStyled
	}
	return FormatJSON
}

func (w *Writer) write(v any) error {
	format := w.resolve()
	resp, isResp := v.(*Response)

	// --jq always emits JSON; --quiet narrows its input to the data.
	if w.opts.JQ != "" {
		if format == FormatQuiet && isResp {
			return w.writeJQ(resp.Data)
		}
		return w.writeJQ(v)
	}

	switch {
	case format == FormatQuiet && isResp:
		return w.writeJSON(resp.Data)
	case format == FormatIDs && isResp:
		return w.writeIDs(resp.Data)
	case format == FormatCount && isResp:
		_, err := fmt.Fprintln(w.opts.Writer, countOf(NormalizeData(resp.Data)))
		return err
	case format == FormatYAML:
		return w.writeYAML(v)
	case format == FormatMarkdown:
		return w.writeLiteralMarkdown(v)
	case format == FormatStyled:
		return w.writeStyled(v)
	default:
		return w.writeJSON(v)
	}
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through NormalizeData so json tags name the fields.
func (w *Writer) writeYAML(v any) error {
	enc := yaml.NewEncoder(w.opts.Writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(NormalizeData(v))
}

// writeIDs prints one id per line for records that have one.
func (w *Writer) writeIDs(data any) error {
	var records []map[string]any
	switch d := NormalizeData(data).(type) {
	case []map[string]any:
		records = d
	case map[string]any:
		records = []map[string]any{d}
	}
	for _, rec := range records {
		id, ok := rec["id"]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(w.opts.Writer, formatCell(id)); err != nil {
			return err
		}
	}
	return nil
}

// countOf is the number of records in normalized data; a single record
// counts as one.
func countOf(data any) int {
	switch d := data.(type) {
	case []map[string]any:
		return len(d)
	case []any:
		return len(d)
	default:
		return 1
	}
}

// NormalizeData converts typed values and raw JSON into maps and slices,
// so renderers see listings, materials and config rows the same way. A
// slice whose elements are all objects becomes []map[string]any.
func NormalizeData(data any) any {
	switch d := data.(type) {
	case nil, []map[string]any, map[string]any, []any:
		return data
	case json.RawMessage:
		var generic any
		if err := json.Unmarshal(d, &generic); err != nil {
			return data
		}
		return asRecords(generic)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return data
	}
	return asRecords(generic)
}

func asRecords(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	records := make([]map[string]any, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return v
		}
		records[i] = rec
	}
	return records
}

// writeStyled outputs ANSI styled terminal output.
func (w *Writer) writeStyled(v any) error {
	r := NewRenderer(w.opts.Writer, true)
	switch resp := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, resp)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, resp)
	default:
		return w.writeJSON(v)
	}
}

// writeLiteralMarkdown outputs literal Markdown syntax (portable, pipeable).
func (w *Writer) writeLiteralMarkdown(v any) error {
	r := NewMarkdownRenderer()
	switch resp := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, resp)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, resp)
	default:
		return w.writeJSON(v)
	}
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary adds a summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithNotice attaches a secondary warning, e.g. a partial failure.
func WithNotice(s string) ResponseOption {
	return func(r *Response) { r.Notice = s }
}

// WithMeta adds metadata to the response.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}
