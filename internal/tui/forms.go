package tui

import (
	"github.com/charmbracelet/huh"
)

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// DeleteConfirmForm asks before deleting what. confirmed is set when the
// form completes.
func DeleteConfirmForm(what string, confirmed *bool) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Delete " + what + "?").
			Description("This action cannot be undone.").
			Affirmative("Delete").
			Negative("Cancel").
			Value(confirmed),
	)).WithShowHelp(false)
}

// SelectOption represents an option in a select prompt.
type SelectOption struct {
	Value string
	Label string
}

// Select shows a single-select prompt.
func Select(title string, options []SelectOption) (string, error) {
	var result string
	err := huh.NewSelect[string]().
		Title(title).
		Options(HuhOptions(options)...).
		Value(&result).
		Run()
	return result, err
}

// HuhOptions converts select options into huh options.
func HuhOptions(options []SelectOption) []huh.Option[string] {
	out := make([]huh.Option[string], len(options))
	for i, opt := range options {
		out[i] = huh.NewOption(opt.Label, opt.Value)
	}
	return out
}
