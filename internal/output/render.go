package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"

	"github.com/matmarket/market-cli/internal/tui"
)

const (
	defaultWidth = 80
	maxCellWidth = 40
	cellPadding  = 2
	lowPriority  = 50
)

// Renderer draws envelopes for a terminal: a summary line, the data as a
// table or a field list, then any warning and stats.
type Renderer struct {
	width int

	title  lipgloss.Style
	text   lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
	fail   lipgloss.Style
	hint   lipgloss.Style
	warn   lipgloss.Style
}

// NewRenderer creates a renderer for w using the resolved theme. Colors
// are used on a terminal, or always when forceStyled is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme is NewRenderer with an explicit theme.
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, tty := terminalInfo(w)
	plain := lipgloss.NewStyle()
	r := &Renderer{width: width, title: plain, text: plain, muted: plain, header: plain, fail: plain, hint: plain, warn: plain}
	if !tty && !forceStyled {
		return r
	}

	// Dark variants: background detection is unreliable when piped.
	color := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Dark))
	}
	r.title = color(theme.Primary).Bold(true)
	r.text = color(theme.Foreground)
	r.muted = color(theme.Muted)
	r.header = color(theme.Foreground).Bold(true)
	r.fail = color(theme.Error).Bold(true)
	r.hint = color(theme.Muted).Italic(true)
	r.warn = color(theme.Warning)
	return r
}

// terminalInfo reports the usable width of w and whether it is a terminal.
func terminalInfo(w io.Writer) (width int, tty bool) {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth, false
	}
	width = defaultWidth
	if tw, _, err := term.GetSize(f.Fd()); err == nil && tw >= 40 {
		width = tw
	}
	if fi, err := f.Stat(); err == nil {
		tty = fi.Mode()&os.ModeCharDevice != 0
	}
	return width, tty
}

// RenderResponse renders a success envelope.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder
	if resp.Summary != "" {
		b.WriteString(r.title.Render(resp.Summary) + "\n\n")
	}

	switch d := NormalizeData(resp.Data).(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.muted.Render("(no results)") + "\n")
		} else {
			b.WriteString(r.table(d) + "\n")
		}
	case map[string]any:
		r.fields(&b, d)
	case nil:
		b.WriteString(r.muted.Render("(no data)") + "\n")
	case string:
		b.WriteString(r.text.Render(d) + "\n")
	default:
		b.WriteString(r.text.Render(formatCell(d)) + "\n")
	}

	if resp.Notice != "" {
		b.WriteString("\n" + r.warn.Render("Warning: "+resp.Notice) + "\n")
	}
	if stats, _ := resp.Meta["stats"].(string); stats != "" {
		b.WriteString("\n" + r.muted.Render("Stats: "+stats) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error envelope.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	out := r.fail.Render("Error: "+resp.Error) + "\n"
	if resp.Hint != "" {
		out += r.hint.Render("Hint: "+resp.Hint) + "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

// fieldPriority orders listing and catalog fields; unknown keys sort last.
var fieldPriority = map[string]int{
	"id":          1,
	"title":       2,
	"name":        2,
	"price":       3,
	"quantity":    4,
	"unit":        4,
	"type":        5,
	"status":      5,
	"material":    6,
	"category":    6,
	"seller":      7,
	"description": 9,
	"created_at":  10,
}

// secondary fields render muted in tables.
var secondary = map[string]bool{"id": true, "created_at": true}

func priorityOf(key string) int {
	if p, ok := fieldPriority[key]; ok {
		return p
	}
	return lowPriority
}

func byPriority(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := priorityOf(keys[i]), priorityOf(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}

// tableKeys picks the scalar and localized-text fields of the first
// record, most important first.
func tableKeys(records []map[string]any) []string {
	var keys []string
	for k, v := range records[0] {
		switch v := v.(type) {
		case []any:
			continue
		case map[string]any:
			if !isLocalized(v) {
				continue
			}
		}
		keys = append(keys, k)
	}
	byPriority(keys)
	return keys
}

// fitKeys drops the least important columns until the table fits.
func (r *Renderer) fitKeys(keys []string, records []map[string]any) []string {
	total := 0
	widths := make([]int, len(keys))
	for i, k := range keys {
		w := lipgloss.Width(formatHeader(k))
		for _, rec := range records {
			w = max(w, lipgloss.Width(formatValue(k, rec[k])))
		}
		widths[i] = min(w, maxCellWidth) + cellPadding
		total += widths[i]
	}
	n := len(keys)
	for n > 1 && total > r.width {
		n--
		total -= widths[n]
	}
	return keys[:n]
}

func (r *Renderer) table(records []map[string]any) string {
	keys := tableKeys(records)
	if len(keys) == 0 {
		return ""
	}
	keys = r.fitKeys(keys, records)

	headers := make([]string, len(keys))
	for i, k := range keys {
		headers[i] = formatHeader(k)
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.header
			case secondary[keys[col]]:
				return r.muted
			default:
				return r.text
			}
		})
	for _, rec := range records {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = formatValue(k, rec[k])
		}
		t.Row(cells...)
	}
	return t.String()
}

// fields renders one record as aligned "Label: value" lines. Descriptions
// are printed whole.
func (r *Renderer) fields(b *strings.Builder, rec map[string]any) {
	keys := make([]string, 0, len(rec))
	for k, v := range rec {
		if m, ok := v.(map[string]any); ok && !isLocalized(m) {
			continue
		}
		keys = append(keys, k)
	}
	byPriority(keys)

	labelWidth := 0
	for _, k := range keys {
		labelWidth = max(labelWidth, len(formatHeader(k)))
	}
	for _, k := range keys {
		value := formatValue(k, rec[k])
		if s, ok := rec[k].(string); ok && k == "description" {
			value = s
		}
		label := fmt.Sprintf("%-*s", labelWidth+1, formatHeader(k)+":")
		b.WriteString(r.muted.Render(label+" ") + r.text.Render(value) + "\n")
	}
}

// formatHeader turns a field key into a column label: created_at becomes
// "Created", unit_price "Unit Price".
func formatHeader(key string) string {
	words := strings.Fields(strings.TrimSuffix(strings.ReplaceAll(key, "_", " "), " at"))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// isLocalized reports whether m is a {"en": .., "ar": ..} text object.
func isLocalized(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k, v := range m {
		if _, ok := v.(string); !ok || (k != "en" && k != "ar") {
			return false
		}
	}
	return true
}

// formatCell renders one value for a table cell, truncating long text.
func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if runes := []rune(v); len(runes) > maxCellWidth {
			return string(runes[:maxCellWidth-3]) + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case map[string]any:
		if isLocalized(v) {
			var parts []string
			for _, lang := range []string{"en", "ar"} {
				if s, _ := v[lang].(string); s != "" {
					parts = append(parts, s)
				}
			}
			return formatCell(strings.Join(parts, " / "))
		}
		if name, ok := v["name"]; ok {
			return formatCell(name)
		}
	}
	return fmt.Sprintf("%v", val)
}

// formatValue is formatCell with *_at timestamps shown as dates.
func formatValue(key string, val any) string {
	if s, ok := val.(string); ok && strings.HasSuffix(key, "_at") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return formatCell(val)
}

// MarkdownRenderer writes envelopes as literal Markdown for piping into
// docs or chat.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a Markdown renderer.
func NewMarkdownRenderer() *MarkdownRenderer { return &MarkdownRenderer{} }

// RenderResponse writes a success envelope as Markdown.
func (MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder
	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	switch d := NormalizeData(resp.Data).(type) {
	case []map[string]any:
		markdownTable(&b, d)
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s:** %s\n", formatHeader(k), formatValue(k, d[k]))
		}
	case nil:
		b.WriteString("*No data*\n")
	default:
		fmt.Fprintf(&b, "%v\n", d)
	}

	if resp.Notice != "" {
		b.WriteString("\n> **Warning:** " + resp.Notice + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError writes an error envelope as Markdown.
func (MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	out := "**Error:** " + resp.Error + "\n"
	if resp.Hint != "" {
		out += "\n*Hint: " + resp.Hint + "*\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

func markdownTable(b *strings.Builder, records []map[string]any) {
	if len(records) == 0 {
		b.WriteString("*No results*\n")
		return
	}
	keys := tableKeys(records)
	row := func(cells []string) {
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	headers := make([]string, len(keys))
	rule := make([]string, len(keys))
	for i, k := range keys {
		headers[i], rule[i] = formatHeader(k), "---"
	}
	row(headers)
	row(rule)
	for _, rec := range records {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = strings.ReplaceAll(formatValue(k, rec[k]), "|", `\|`)
		}
		row(cells)
	}
}
