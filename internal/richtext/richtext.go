// Package richtext converts listing descriptions to Markdown and renders
// them for the terminal.
package richtext

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

// DefaultWidth is the word-wrap width used when the terminal width is unknown.
const DefaultWidth = 80

// Descriptions written in the admin editor arrive as HTML; descriptions
// written from the CLI are Markdown or plain text.

var (
	tagPattern        = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	anyTagPattern     = regexp.MustCompile(`<[^>]+>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	listPattern       = regexp.MustCompile(`(?is)<(ul|ol)[^>]*>(.*?)</(?:ul|ol)>`)
	itemPattern       = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	markdownPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^#{1,6}\s`),
		regexp.MustCompile(`\*\*[^*]+\*\*`),
		regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),
		regexp.MustCompile("```"),
		regexp.MustCompile(`(?m)^[-*+]\s`),
		regexp.MustCompile(`(?m)^\d+\.\s`),
		regexp.MustCompile(`(?m)^>\s`),
	}
)

// htmlRules rewrite block and inline elements in order. Lists are handled
// separately because their items need numbering.
var htmlRules = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`), "# $1\n\n"},
	{regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`), "## $1\n\n"},
	{regexp.MustCompile(`(?is)<h[3-6][^>]*>(.*?)</h[3-6]>`), "### $1\n\n"},
	{regexp.MustCompile(`(?is)<blockquote[^>]*>(.*?)</blockquote>`), "> $1\n\n"},
	{regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`), "$1\n\n"},
	{regexp.MustCompile(`(?i)<br\s*/?\s*>`), "\n"},
	{regexp.MustCompile(`(?i)<hr\s*/?\s*>`), "\n---\n\n"},
	{regexp.MustCompile(`(?is)<(?:strong|b)\b[^>]*>(.*?)</(?:strong|b)>`), "**$1**"},
	{regexp.MustCompile(`(?is)<(?:em|i)\b[^>]*>(.*?)</(?:em|i)>`), "*$1*"},
	{regexp.MustCompile(`(?is)<(?:del|s|strike)\b[^>]*>(.*?)</(?:del|s|strike)>`), "~~$1~~"},
	{regexp.MustCompile(`(?is)<code[^>]*>(.*?)</code>`), "`$1`"},
	{regexp.MustCompile(`(?is)<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`), "[$2]($1)"},
}

// IsHTML reports whether s contains HTML tags.
func IsHTML(s string) bool {
	return s != "" && tagPattern.MatchString(s)
}

// IsMarkdown reports whether s looks like Markdown rather than plain text.
func IsMarkdown(s string) bool {
	for _, p := range markdownPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// ToMarkdown converts HTML descriptions to Markdown. Other text is returned
// trimmed and otherwise unchanged.
func ToMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if !IsHTML(s) {
		return s
	}

	s = listPattern.ReplaceAllStringFunc(s, func(list string) string {
		m := listPattern.FindStringSubmatch(list)
		ordered := strings.EqualFold(m[1], "ol")
		var lines []string
		for i, item := range itemPattern.FindAllStringSubmatch(m[2], -1) {
			marker := "- "
			if ordered {
				marker = strconv.Itoa(i+1) + ". "
			}
			lines = append(lines, marker+strings.TrimSpace(item[1]))
		}
		return strings.Join(lines, "\n") + "\n\n"
	})
	for _, rule := range htmlRules {
		s = rule.pattern.ReplaceAllString(s, rule.repl)
	}
	s = anyTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Render renders a description for a terminal of the given width with
// glamour's auto-detected style.
func Render(s string, width int) (string, error) {
	return render(s, width, glamour.WithAutoStyle())
}

// RenderPlain renders without colors, for pipes and NO_COLOR.
func RenderPlain(s string, width int) (string, error) {
	return render(s, width, glamour.WithStandardStyle("notty"))
}

func render(s string, width int, style glamour.TermRendererOption) (string, error) {
	md := ToMarkdown(s)
	if md == "" {
		return "", nil
	}
	if width <= 0 {
		width = DefaultWidth
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Excerpt returns the first non-empty line of a description with Markdown
// markers removed, truncated to width cells.
func Excerpt(s string, width int) string {
	for _, line := range strings.Split(ToMarkdown(s), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#>-*+ ")
		line = strings.NewReplacer("**", "", "~~", "", "`", "").Replace(line)
		if line == "" {
			continue
		}
		if width > 0 {
			return ansi.Truncate(line, width, "…")
		}
		return line
	}
	return ""
}
