package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/matmarket/market-cli/internal/tui"
)

// =============================================================================
// Exit Codes Tests
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeAuth, ExitAuth},
		{CodeForbidden, ExitForbidden},
		{CodeRateLimit, ExitRateLimit},
		{CodeNetwork, ExitNetwork},
		{CodeAPI, ExitAPI},
		{CodeValidation, ExitValidation},
		{"unknown_code", ExitAPI}, // Unknown codes default to ExitAPI
		{"", ExitAPI},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ExitCodeFor(tt.code); got != tt.expected {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestExitCodeConstants(t *testing.T) {
	// Scripts depend on these values.
	expected := map[int]int{
		ExitOK:         0,
		ExitUsage:      1,
		ExitNotFound:   2,
		ExitAuth:       3,
		ExitForbidden:  4,
		ExitRateLimit:  5,
		ExitNetwork:    6,
		ExitAPI:        7,
		ExitValidation: 8,
	}

	for code, value := range expected {
		if code != value {
			t.Errorf("Exit code constant mismatch: got %d, want %d", code, value)
		}
	}
}

// =============================================================================
// Error Struct Tests
// =============================================================================

func TestErrorInterface(t *testing.T) {
	errWithHint := &Error{Code: CodeNotFound, Message: "listing not found", Hint: "check the ID"}
	if got := errWithHint.Error(); got != "listing not found: check the ID" {
		t.Errorf("Error() = %q", got)
	}

	errNoHint := &Error{Code: CodeNotFound, Message: "listing not found"}
	if got := errNoHint.Error(); got != "listing not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{Code: CodeAPI, Message: "api error", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if (&Error{Code: CodeAPI}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when Cause is nil")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		code     string
		exit     int
		status   int
		hintPart string
	}{
		{"usage", ErrUsage("bad flag"), CodeUsage, ExitUsage, 0, ""},
		{"usage hint", ErrUsageHint("bad flag", "use --help"), CodeUsage, ExitUsage, 0, "use --help"},
		{"not found", ErrNotFound("Listing", "42"), CodeNotFound, ExitNotFound, 404, ""},
		{"auth", ErrAuth("Not authenticated"), CodeAuth, ExitAuth, 401, "market auth login"},
		{"forbidden", ErrForbidden("Admins only"), CodeForbidden, ExitForbidden, 403, ""},
		{"rate limit", ErrRateLimit(30), CodeRateLimit, ExitRateLimit, 429, "30 seconds"},
		{"rate limit no header", ErrRateLimit(0), CodeRateLimit, ExitRateLimit, 429, "later"},
		{"api", ErrAPI(500, "boom"), CodeAPI, ExitAPI, 500, ""},
		{"validation", ErrValidation(422, "price must be positive"), CodeValidation, ExitValidation, 422, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.ExitCode() != tt.exit {
				t.Errorf("ExitCode() = %d, want %d", tt.err.ExitCode(), tt.exit)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
			if tt.hintPart != "" && !strings.Contains(tt.err.Hint, tt.hintPart) {
				t.Errorf("Hint = %q, want it to contain %q", tt.err.Hint, tt.hintPart)
			}
		})
	}
}

func TestErrNotFoundMessage(t *testing.T) {
	err := ErrNotFound("Listing", "42")
	if err.Message != "Listing not found: 42" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestErrNetworkIsRetryable(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrNetwork(cause)
	if !err.Retryable {
		t.Error("network errors should be retryable")
	}
	if err.Hint != "connection refused" {
		t.Errorf("Hint = %q", err.Hint)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}
}

func TestAsError(t *testing.T) {
	orig := ErrNotFound("Listing", "1")
	if AsError(orig) != orig {
		t.Error("AsError should return the same *Error")
	}

	wrapped := fmt.Errorf("loading: %w", orig)
	if AsError(wrapped) != orig {
		t.Error("AsError should unwrap to the inner *Error")
	}

	plain := AsError(errors.New("plain"))
	if plain.Code != CodeAPI || plain.Message != "plain" {
		t.Errorf("plain error = %+v", plain)
	}

	canceled := AsError(fmt.Errorf("fetch: %w", context.Canceled))
	if canceled.Code != CodeNetwork {
		t.Errorf("canceled Code = %q, want %q", canceled.Code, CodeNetwork)
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Error("nil error should have no message")
	}
	if got := UserMessage(ErrValidation(422, "Title is required")); got != "Title is required" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(&Error{Code: CodeAPI}); got != GenericFailureMessage {
		t.Errorf("empty message should fall back, got %q", got)
	}
}

// =============================================================================
// Format Tests
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatAuto, true},
		{"auto", FormatAuto, true},
		{"json", FormatJSON, true},
		{"yaml", FormatYAML, true},
		{"yml", FormatYAML, true},
		{"markdown", FormatMarkdown, true},
		{"md", FormatMarkdown, true},
		{"styled", FormatStyled, true},
		{"quiet", FormatQuiet, true},
		{"ids", FormatIDs, true},
		{"count", FormatCount, true},
		{"xml", FormatAuto, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFormat(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseFormat(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

func TestWriterOK(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	err := w.OK(map[string]any{"id": "42", "title": "Rebar"},
		WithSummary("Listing created"),
		WithNotice("favorites failed"),
		WithMeta("stats", "1 request"),
	)
	if err != nil {
		t.Fatalf("OK() error = %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.OK {
		t.Error("ok should be true")
	}
	if resp.Summary != "Listing created" {
		t.Errorf("summary = %q", resp.Summary)
	}
	if resp.Notice != "favorites failed" {
		t.Errorf("notice = %q", resp.Notice)
	}
	if resp.Meta["stats"] != "1 request" {
		t.Errorf("meta = %v", resp.Meta)
	}
}

func TestWriterOKOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	if err := w.OK([]string{}); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"summary"`, `"notice"`, `"meta"`} {
		if strings.Contains(buf.String(), key) {
			t.Errorf("output should omit %s: %s", key, buf.String())
		}
	}
}

func TestWriterErr(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	if err := w.Err(ErrUsageHint("Listing ID required", "Run: market listings list")); err != nil {
		t.Fatal(err)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.OK {
		t.Error("ok should be false")
	}
	if resp.Code != CodeUsage || resp.Error != "Listing ID required" || resp.Hint != "Run: market listings list" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestWriterAutoIsJSONWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatAuto, Writer: &buf})
	if err := w.OK(map[string]any{"id": "1"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"ok": true`) {
		t.Errorf("expected JSON envelope, got %q", buf.String())
	}
}

func TestWriterQuietFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})
	if err := w.OK(map[string]any{"id": "1"}, WithSummary("x"), WithNotice("careful")); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := decoded["ok"]; exists {
		t.Error("quiet output should not include the envelope")
	}
	if decoded["id"] != "1" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestWriterYAMLFormat(t *testing.T) {
	type listing struct {
		ID         string `json:"id"`
		MaterialID string `json:"materialId"`
	}
	var buf bytes.Buffer
	w := New(Options{Format: FormatYAML, Writer: &buf})
	if err := w.OK([]listing{{ID: "1", MaterialID: "7"}}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "ok: true") {
		t.Errorf("missing ok: %q", out)
	}
	// json tags drive the field names
	if !strings.Contains(out, "materialId:") {
		t.Errorf("expected json tag names, got %q", out)
	}
}

func TestWriterIDsFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatIDs, Writer: &buf})

	data := []map[string]any{{"id": float64(1)}, {"id": "b2"}, {"title": "no id"}}
	if err := w.OK(data); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "1\nb2\n" {
		t.Errorf("ids output = %q", buf.String())
	}

	buf.Reset()
	if err := w.OK(map[string]any{"id": "42"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "42\n" {
		t.Errorf("single id output = %q", buf.String())
	}
}

func TestWriterCountFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatCount, Writer: &buf})

	if err := w.OK([]map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "3" {
		t.Errorf("count = %q", buf.String())
	}

	buf.Reset()
	if err := w.OK(map[string]any{"id": 1}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "1" {
		t.Errorf("single item count = %q", buf.String())
	}
}

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf, JQ: ".data[].id"})

	if err := w.OK([]map[string]any{{"id": "1"}, {"id": "2"}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\"1\"\n\"2\"\n" {
		t.Errorf("jq output = %q", buf.String())
	}
}

func TestWriterJQQuietAppliesToData(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf, JQ: "length"})

	if err := w.OK([]map[string]any{{"id": "1"}, {"id": "2"}}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "2" {
		t.Errorf("jq output = %q", buf.String())
	}
}

func TestCompileJQRejectsBadSyntax(t *testing.T) {
	_, err := CompileJQ(".data[")
	if err == nil {
		t.Fatal("expected error")
	}
	e := AsError(err)
	if e.Code != CodeUsage || e.Message != "Invalid --jq expression" {
		t.Errorf("err = %+v", e)
	}
}

func TestNewWithNilWriter(t *testing.T) {
	w := New(Options{Format: FormatJSON})
	if w.opts.Writer == nil {
		t.Error("nil writer should default to stdout")
	}
	if w.Format() != FormatJSON {
		t.Errorf("Format() = %v", w.Format())
	}
}

// =============================================================================
// NormalizeData Tests
// =============================================================================

func TestNormalizeDataWithStruct(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}
	got := NormalizeData([]item{{ID: "1"}, {ID: "2"}})
	maps, ok := got.([]map[string]any)
	if !ok {
		t.Fatalf("NormalizeData returned %T", got)
	}
	if len(maps) != 2 || maps[1]["id"] != "2" {
		t.Errorf("maps = %v", maps)
	}
}

func TestNormalizeDataWithJSONRawMessage(t *testing.T) {
	got := NormalizeData(json.RawMessage(`{"id":"1"}`))
	m, ok := got.(map[string]any)
	if !ok || m["id"] != "1" {
		t.Errorf("NormalizeData = %#v", got)
	}
}

func TestNormalizeDataPassThrough(t *testing.T) {
	if NormalizeData(nil) != nil {
		t.Error("nil should stay nil")
	}
	empty, ok := NormalizeData([]string{}).([]map[string]any)
	if !ok || len(empty) != 0 {
		t.Errorf("empty slice = %#v", empty)
	}
	mixed, ok := NormalizeData([]any{"a", map[string]any{"id": 1}}).([]any)
	if !ok || len(mixed) != 2 {
		t.Errorf("mixed slice = %#v", mixed)
	}
}

// =============================================================================
// Cell Formatting Tests
// =============================================================================

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"whole float", float64(30), "30"},
		{"fraction", 2450.5, "2450.50"},
		{"bool", true, "yes"},
		{"localized", map[string]any{"en": "Steel", "ar": "فولاذ"}, "Steel / فولاذ"},
		{"nested name", map[string]any{"id": "7", "name": "Steel"}, "Steel"},
		{"long string", strings.Repeat("x", 50), strings.Repeat("x", 37) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCell(tt.in); got != tt.want {
				t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatValueDates(t *testing.T) {
	if got := formatValue("created_at", "2026-03-01T10:00:00Z"); got != "Mar 1, 2026" {
		t.Errorf("formatValue = %q", got)
	}
	if got := formatValue("created_at", "not a date"); got != "not a date" {
		t.Errorf("formatValue = %q", got)
	}
}

func TestFormatHeader(t *testing.T) {
	if got := formatHeader("created_at"); got != "Created" {
		t.Errorf("formatHeader = %q", got)
	}
	if got := formatHeader("unit_price"); got != "Unit Price" {
		t.Errorf("formatHeader = %q", got)
	}
}

// =============================================================================
// Markdown / Styled Tests
// =============================================================================

func TestWriterMarkdownFormatList(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	data := []map[string]any{
		{"id": "1", "title": "Rebar | 12mm"},
		{"id": "2", "title": "Copper"},
	}
	if err := w.OK(data, WithSummary("2 listings"), WithNotice("stale cache")); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "## 2 listings\n\n") {
		t.Errorf("missing summary heading: %q", out)
	}
	if !strings.Contains(out, "| --- |") {
		t.Errorf("missing table separator: %q", out)
	}
	if !strings.Contains(out, `Rebar \| 12mm`) {
		t.Errorf("pipes should be escaped: %q", out)
	}
	if !strings.Contains(out, "> **Warning:** stale cache") {
		t.Errorf("missing notice: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("markdown should not contain ANSI codes: %q", out)
	}
}

func TestWriterMarkdownFormatObject(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	if err := w.OK(map[string]any{"unit": "ton", "id": "7"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "- **Id:** 7\n- **Unit:** ton\n" {
		t.Errorf("object output = %q", buf.String())
	}
}

func TestWriterMarkdownFormatError(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	if err := w.Err(ErrUsageHint("Unknown status: x", "Use one of: active")); err != nil {
		t.Fatal(err)
	}
	want := "**Error:** Unknown status: x\n\n*Hint: Use one of: active*\n"
	if buf.String() != want {
		t.Errorf("error output = %q, want %q", buf.String(), want)
	}
}

func TestWriterStyledRendersNoticeAndStats(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})
	err := w.OK([]map[string]any{}, WithSummary("0 listings"), WithNotice("partial"), WithMeta("stats", "2 requests"))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"0 listings", "(no results)", "Warning: partial", "Stats: 2 requests"} {
		if !strings.Contains(out, want) {
			t.Errorf("styled output missing %q: %q", want, out)
		}
	}
}

func TestRendererDropsLowPriorityColumnsToFit(t *testing.T) {
	r := NewRendererWithTheme(&bytes.Buffer{}, false, tui.NoColorTheme())
	r.width = 30

	records := []map[string]any{{
		"id":          "1",
		"title":       "Copper wire",
		"price":       float64(2450),
		"description": strings.Repeat("long text ", 10),
	}}
	keys := r.fitKeys(tableKeys(records), records)
	if strings.Join(keys, ",") != "id,title,price" {
		t.Errorf("keys = %v", keys)
	}

	r.width = 1
	if keys := r.fitKeys(tableKeys(records), records); len(keys) != 1 || keys[0] != "id" {
		t.Errorf("narrow keys = %v, want the first column kept", keys)
	}
}
