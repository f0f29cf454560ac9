package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ListingType distinguishes fixed-price listings from auctions.
type ListingType string

const (
	ListingSale    ListingType = "sale"
	ListingAuction ListingType = "auction"
)

// ListingStatus is the moderation/lifecycle state of a listing.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusExpired  ListingStatus = "expired"
	StatusRejected ListingStatus = "rejected"
)

// ListingStatuses lists every status in display order.
var ListingStatuses = []ListingStatus{StatusPending, StatusActive, StatusSold, StatusExpired, StatusRejected}

// Listing is a material offered for sale or auction.
type Listing struct {
	ID            ID            `json:"id"`
	Title         LocalizedText `json:"title"`
	Description   LocalizedText `json:"description,omitzero"`
	Price         float64       `json:"price"`
	Currency      string        `json:"currency,omitempty"`
	Quantity      float64       `json:"quantity"`
	Unit          string        `json:"unit,omitempty"`
	Type          ListingType   `json:"type"`
	Status        ListingStatus `json:"status"`
	AuctionEndsAt *time.Time    `json:"auctionEndsAt,omitempty"`
	MaterialID    ID            `json:"materialId,omitempty"`
	Material      *Material     `json:"material,omitempty"`
	SellerID      ID            `json:"userId,omitempty"`
	Seller        *User         `json:"user,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Material is a tradable material within a category.
type Material struct {
	ID         ID            `json:"id"`
	Name       LocalizedText `json:"name"`
	Unit       string        `json:"unit,omitempty"`
	CategoryID ID            `json:"categoryId,omitempty"`
	Category   *Category     `json:"category,omitempty"`
	Image      string        `json:"image,omitempty"`
}

// Category groups materials.
type Category struct {
	ID    ID            `json:"id"`
	Name  LocalizedText `json:"name"`
	Image string        `json:"image,omitempty"`
}

// Company is a trading company registered on the marketplace.
type Company struct {
	ID        ID            `json:"id"`
	Name      LocalizedText `json:"name"`
	CountryID ID            `json:"countryId,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	Email     string        `json:"email,omitempty"`
	Address   string        `json:"address,omitempty"`
}

// Country is a country the marketplace operates in.
type Country struct {
	ID       ID            `json:"id"`
	Name     LocalizedText `json:"name"`
	Code     string        `json:"code,omitempty"`
	Currency string        `json:"currency,omitempty"`
}

// User is a marketplace account.
type User struct {
	ID        ID         `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role,omitempty"`
	CompanyID ID         `json:"companyId,omitempty"`
	Favorites []Favorite `json:"favorites,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitzero"`
}

// Favorite links a user to a material they follow.
type Favorite struct {
	MaterialID ID        `json:"materialId"`
	Material   *Material `json:"material,omitempty"`
}

// UnmarshalJSON normalizes the favorite shapes the server emits:
// a bare id, {"materialId": ..}, {"material_id": ..}, or
// {"material": {"id": .., ...}}.
func (f *Favorite) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = Favorite{}
		return nil
	}
	if b[0] != '{' {
		id, err := parseID(b)
		if err != nil {
			return fmt.Errorf("favorite: %w", err)
		}
		*f = Favorite{MaterialID: id}
		return nil
	}

	var raw struct {
		MaterialID      json.RawMessage `json:"materialId"`
		MaterialIDSnake json.RawMessage `json:"material_id"`
		Material        json.RawMessage `json:"material"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("favorite: %w", err)
	}

	out := Favorite{}
	if len(raw.Material) > 0 && !bytes.Equal(raw.Material, []byte("null")) {
		if bytes.TrimSpace(raw.Material)[0] == '{' {
			var m Material
			if err := json.Unmarshal(raw.Material, &m); err != nil {
				return fmt.Errorf("favorite material: %w", err)
			}
			out.Material = &m
			out.MaterialID = m.ID
		} else {
			id, err := parseID(raw.Material)
			if err != nil {
				return fmt.Errorf("favorite: %w", err)
			}
			out.MaterialID = id
		}
	}
	for _, candidate := range []json.RawMessage{raw.MaterialID, raw.MaterialIDSnake} {
		if out.MaterialID != "" || len(candidate) == 0 {
			continue
		}
		id, err := parseID(candidate)
		if err != nil {
			return fmt.Errorf("favorite: %w", err)
		}
		out.MaterialID = id
	}
	*f = out
	return nil
}

// FavoriteMaterialIDs returns the material ids of favs, skipping empties.
func FavoriteMaterialIDs(favs []Favorite) []string {
	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		if f.MaterialID != "" {
			ids = append(ids, string(f.MaterialID))
		}
	}
	return ids
}

// ListingInput is the create/update payload for a listing. Nil fields are
// omitted so PATCH only touches what was set.
type ListingInput struct {
	Title         *LocalizedText `json:"title,omitempty"`
	Description   *LocalizedText `json:"description,omitempty"`
	Price         *float64       `json:"price,omitempty"`
	Currency      *string        `json:"currency,omitempty"`
	Quantity      *float64       `json:"quantity,omitempty"`
	Unit          *string        `json:"unit,omitempty"`
	Type          *ListingType   `json:"type,omitempty"`
	Status        *ListingStatus `json:"status,omitempty"`
	MaterialID    *string        `json:"materialId,omitempty"`
	AuctionEndsAt *time.Time     `json:"auctionEndsAt,omitempty"`
}

// Validate checks the fields a new listing requires.
func (in ListingInput) Validate() error {
	switch {
	case in.Title == nil || in.Title.IsZero():
		return fmt.Errorf("title is required")
	case in.Price == nil || *in.Price < 0:
		return fmt.Errorf("price must be zero or more")
	case in.Quantity == nil || *in.Quantity <= 0:
		return fmt.Errorf("quantity must be positive")
	case in.MaterialID == nil || *in.MaterialID == "":
		return fmt.Errorf("material is required")
	case in.Type != nil && *in.Type == ListingAuction && in.AuctionEndsAt == nil:
		return fmt.Errorf("auction listings need an end time")
	}
	return nil
}

// NamedInput is the create/update payload for name-only resources
// (categories, countries, companies).
type NamedInput struct {
	Name      *LocalizedText `json:"name,omitempty"`
	Code      *string        `json:"code,omitempty"`
	CountryID *string        `json:"countryId,omitempty"`
}

// MaterialInput is the create/update payload for a material.
type MaterialInput struct {
	Name       *LocalizedText `json:"name,omitempty"`
	Unit       *string        `json:"unit,omitempty"`
	CategoryID *string        `json:"categoryId,omitempty"`
}

// UserInput is the create/update payload for a user.
type UserInput struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Role      *string `json:"role,omitempty"`
	CompanyID *string `json:"companyId,omitempty"`
}
