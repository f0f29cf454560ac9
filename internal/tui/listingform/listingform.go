// Package listingform holds the listing create/edit form shared by the
// listings commands and the browser.
package listingform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/matmarket/market-cli/internal/dateparse"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/tui"
)

// Values holds the editable fields of a listing as the form
// edits them. Numbers and times stay strings until Input parses them.
type Values struct {
	TitleEN       string
	TitleAR       string
	DescriptionEN string
	DescriptionAR string
	Price         string
	Currency      string
	Quantity      string
	Unit          string
	Type          string
	MaterialID    string
	AuctionEndsAt string
}

// AuctionLayout is the format auction ends are shown and edited in. Input
// also accepts the relative forms of dateparse.ParseEnd.
const AuctionLayout = dateparse.Layout

// From prefills the form from an existing listing. The
// listing should come from GetForEdit so both languages are present.
func From(l market.Listing) Values {
	v := Values{
		TitleEN:       l.Title.In("en"),
		TitleAR:       l.Title.Get("ar"),
		DescriptionEN: l.Description.In("en"),
		DescriptionAR: l.Description.Get("ar"),
		Price:         strconv.FormatFloat(l.Price, 'f', -1, 64),
		Currency:      l.Currency,
		Quantity:      strconv.FormatFloat(l.Quantity, 'f', -1, 64),
		Unit:          l.Unit,
		Type:          string(l.Type),
		MaterialID:    string(l.MaterialID),
	}
	if l.AuctionEndsAt != nil {
		v.AuctionEndsAt = l.AuctionEndsAt.Local().Format(AuctionLayout)
	}
	if v.Type == "" {
		v.Type = string(market.ListingSale)
	}
	return v
}

// Input converts the form values into an API payload. Empty optional
// fields are omitted.
func (v Values) Input() (market.ListingInput, error) {
	var in market.ListingInput

	if v.TitleEN != "" || v.TitleAR != "" {
		title := market.Localized(strings.TrimSpace(v.TitleEN), strings.TrimSpace(v.TitleAR))
		in.Title = &title
	}
	if v.DescriptionEN != "" || v.DescriptionAR != "" {
		desc := market.Localized(strings.TrimSpace(v.DescriptionEN), strings.TrimSpace(v.DescriptionAR))
		in.Description = &desc
	}
	if v.Price != "" {
		price, err := parseAmount(v.Price)
		if err != nil {
			return in, fmt.Errorf("price: %w", err)
		}
		in.Price = &price
	}
	if v.Quantity != "" {
		qty, err := parseAmount(v.Quantity)
		if err != nil {
			return in, fmt.Errorf("quantity: %w", err)
		}
		in.Quantity = &qty
	}
	if v.Currency != "" {
		cur := strings.ToUpper(strings.TrimSpace(v.Currency))
		in.Currency = &cur
	}
	if v.Unit != "" {
		unit := strings.TrimSpace(v.Unit)
		in.Unit = &unit
	}
	if v.Type != "" {
		typ := market.ListingType(v.Type)
		in.Type = &typ
	}
	if v.MaterialID != "" {
		id := v.MaterialID
		in.MaterialID = &id
	}
	if v.AuctionEndsAt != "" {
		end, err := dateparse.ParseEnd(v.AuctionEndsAt)
		if err != nil {
			return in, fmt.Errorf("auction end: use %s, +3d or friday", AuctionLayout)
		}
		in.AuctionEndsAt = &end
	}
	return in, nil
}

func parseAmount(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if f < 0 {
		return 0, errors.New("must not be negative")
	}
	return f, nil
}

func validAmount(s string) error {
	_, err := parseAmount(s)
	return err
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}

// New builds the create/edit form bound to v. materials fills the
// material picker; an empty list falls back to a free-text material id.
func New(title string, v *Values, materials []tui.SelectOption) *huh.Form {
	var material huh.Field
	if len(materials) > 0 {
		material = huh.NewSelect[string]().
			Title("Material").
			Options(tui.HuhOptions(materials)...).
			Value(&v.MaterialID)
	} else {
		material = huh.NewInput().
			Title("Material ID").
			Value(&v.MaterialID).
			Validate(required)
	}

	details := huh.NewGroup(
		huh.NewInput().Title("Title (English)").Value(&v.TitleEN).Validate(func(s string) error {
			if strings.TrimSpace(s) == "" && strings.TrimSpace(v.TitleAR) == "" {
				return errors.New("a title is required in at least one language")
			}
			return nil
		}),
		huh.NewInput().Title("Title (Arabic)").Value(&v.TitleAR),
		huh.NewText().Title("Description (English)").Value(&v.DescriptionEN),
		huh.NewText().Title("Description (Arabic)").Value(&v.DescriptionAR),
	).Title(title)

	terms := huh.NewGroup(
		material,
		huh.NewSelect[string]().
			Title("Type").
			Options(
				huh.NewOption("Sale", string(market.ListingSale)),
				huh.NewOption("Auction", string(market.ListingAuction)),
			).
			Value(&v.Type),
		huh.NewInput().Title("Price").Value(&v.Price).Validate(validAmount),
		huh.NewInput().Title("Currency").Placeholder("SAR").Value(&v.Currency),
		huh.NewInput().Title("Quantity").Value(&v.Quantity).Validate(validAmount),
		huh.NewInput().Title("Unit").Placeholder("ton").Value(&v.Unit),
	)

	auction := huh.NewGroup(
		huh.NewInput().
			Title("Auction ends").
			Placeholder(AuctionLayout).
			Value(&v.AuctionEndsAt).
			Validate(func(s string) error {
				if _, err := dateparse.ParseEnd(s); err != nil {
					return fmt.Errorf("use %s, +3d or friday", AuctionLayout)
				}
				return nil
			}),
	).WithHideFunc(func() bool { return v.Type != string(market.ListingAuction) })

	return huh.NewForm(details, terms, auction).WithShowHelp(true)
}

// Run runs the listing form as a standalone prompt.
func Run(title string, v *Values, materials []tui.SelectOption) (market.ListingInput, error) {
	if err := New(title, v, materials).Run(); err != nil {
		return market.ListingInput{}, err
	}
	return v.Input()
}
