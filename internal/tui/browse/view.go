package browse

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/richtext"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	chromeLines   = 5
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.form != nil {
		return m.styles.Title.Render(m.view.Title()) + "\n\n" + m.form.View()
	}

	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if m.searching || m.query != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	if m.detail {
		b.WriteString(m.detailView(width))
	} else {
		b.WriteString(m.listView(width))
	}

	b.WriteString("\n")
	if t := m.toast.View(); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString(m.footer())
	return b.String()
}

func (m *Model) header() string {
	crumbs := m.view.Breadcrumb()
	title := m.styles.Title.Render(strings.Join(crumbs, " › "))
	var extra []string
	if m.view.Kind() == market.ViewListings && m.status != "" {
		extra = append(extra, m.locale.Label(m.status))
	}
	if m.activeState() == data.StateFetching || m.pending > 0 {
		extra = append(extra, m.spinner.View())
	}
	if len(extra) == 0 {
		return title
	}
	return title + "  " + m.styles.Muted.Render(strings.Join(extra, " "))
}

func (m *Model) listView(width int) string {
	rows := m.rows()
	if len(rows) == 0 {
		if m.activeState() == data.StateFetching {
			return m.styles.Muted.Render("Loading…")
		}
		return m.styles.Muted.Render("Nothing here yet")
	}

	height := m.height
	if height <= 0 {
		height = defaultHeight
	}
	visible := max(height-chromeLines, 3)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(rows))

	lines := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(rows[i], i == m.cursor, width))
	}
	if m.activeState() == data.StateExhausted && end == len(rows) {
		lines = append(lines, m.styles.Muted.Render("end of list"))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderRow(r row, selected bool, width int) string {
	cursor := "  "
	label := m.styles.Body.Render(r.label)
	if selected {
		cursor = m.styles.Cursor.Render("▸ ")
		label = m.styles.Selected.Render(r.label)
	}
	line := cursor + label
	if r.meta != "" {
		line += "  " + m.styles.Muted.Render(r.meta)
	}
	line = ansi.Truncate(line, width, "…")
	if m.locale.IsRTL() {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
	}
	return line
}

func (m *Model) detailView(width int) string {
	l, ok := m.selectedListing()
	if !ok {
		return ""
	}
	tag := m.locale.Tag()

	var b strings.Builder
	b.WriteString(m.styles.Bold.Render(l.Title.Resolve(tag)))
	b.WriteString("\n")
	b.WriteString(m.styles.RenderKeyValue("Price", m.locale.FormatPrice(l.Price, l.Currency)))
	b.WriteString("\n")
	b.WriteString(m.styles.RenderKeyValue("Quantity", m.locale.FormatQuantity(l.Quantity, l.Unit)))
	b.WriteString("\n")
	b.WriteString(m.styles.RenderKeyValue("Type", m.locale.Label(string(l.Type))))
	b.WriteString("\n")
	b.WriteString(m.styles.RenderKeyValue("Status", m.locale.Label(string(l.Status))))
	b.WriteString("\n")
	if !l.CreatedAt.IsZero() {
		b.WriteString(m.styles.RenderKeyValue("Listed", m.locale.FormatDate(l.CreatedAt)))
		b.WriteString("\n")
	}
	if desc := l.Description.Resolve(tag); desc != "" {
		rendered, err := richtext.Render(desc, width)
		if err != nil {
			rendered = richtext.ToMarkdown(desc)
		}
		b.WriteString("\n")
		b.WriteString(rendered)
	}
	return b.String()
}

func (m *Model) footer() string {
	bindings := m.keys.ShortHelp(m.view.Kind() == market.ViewListings)
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, helpText(b))
	}
	return m.styles.Muted.Render(strings.Join(parts, "  "))
}

func helpText(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}
