package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestResolveThemeHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, NoColorTheme(), ResolveTheme())
}

func TestDefaultThemeHasColors(t *testing.T) {
	theme := DefaultTheme()
	assert.NotEmpty(t, theme.Primary.Dark)
	assert.NotEmpty(t, theme.Primary.Light)
	assert.NotEqual(t, lipgloss.AdaptiveColor{}, theme.Error)
}

func TestRenderKeyValue(t *testing.T) {
	s := NewStylesWithTheme(NoColorTheme())
	assert.Equal(t, "Price: 12", s.RenderKeyValue("Price", "12"))
}
