package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/matmarket/market-cli/internal/api"
	"github.com/matmarket/market-cli/internal/data"
)

// Service bundles the marketplace resources over one API client.
type Service struct {
	Listings   *Resource[Listing, ListingInput]
	Materials  *Resource[Material, MaterialInput]
	Categories *Resource[Category, NamedInput]
	Companies  *Resource[Company, NamedInput]
	Countries  *Resource[Country, NamedInput]
	Users      *Users
}

// NewService creates the resource set for client.
func NewService(client *api.Client) *Service {
	return &Service{
		Listings:   newResource[Listing, ListingInput](client, "listings", true),
		Materials:  newResource[Material, MaterialInput](client, "materials", true),
		Categories: newResource[Category, NamedInput](client, "categories", true),
		Companies:  newResource[Company, NamedInput](client, "companies", true),
		Countries:  newResource[Country, NamedInput](client, "countries", true),
		Users:      &Users{Resource: newResource[User, UserInput](client, "users", false), client: client},
	}
}

// Users is the users resource plus favorites.
type Users struct {
	*Resource[User, UserInput]
	client *api.Client
}

// Favorites lists the materials a user follows.
func (u *Users) Favorites(ctx context.Context, userID string) (favs []Favorite, err error) {
	ctx, done := u.operation(ctx, "Favorites", userID, false)
	defer func() { done(err) }()

	query := url.Values{}
	if lang := u.client.Language(); lang != "" {
		query.Set("lang", lang)
	}
	resp, err := u.client.Get(ctx, u.favoritesPath(userID), query)
	if err != nil {
		return nil, err
	}
	favs, err = decodeList[Favorite](resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode favorites of user %s: %w", userID, err)
	}
	return favs, nil
}

// AddFavorite attaches a material to a user's favorites.
func (u *Users) AddFavorite(ctx context.Context, userID, materialID string) (err error) {
	ctx, done := u.operation(ctx, "AddFavorite", userID, true)
	defer func() { done(err) }()

	_, err = u.client.Post(ctx, u.favoritesPath(userID), map[string]string{"materialId": materialID})
	return err
}

// RemoveFavorite detaches a material from a user's favorites.
func (u *Users) RemoveFavorite(ctx context.Context, userID, materialID string) (err error) {
	ctx, done := u.operation(ctx, "RemoveFavorite", userID, true)
	defer func() { done(err) }()

	_, err = u.client.Delete(ctx, u.favoritesPath(userID)+"/"+url.PathEscape(materialID))
	return err
}

// CreateWithFavorites creates a user and then attaches each material as a
// favorite. A failed create is the primary error. Favorites that fail to
// attach are reported as SecondaryErr while the created user stands.
func (u *Users) CreateWithFavorites(ctx context.Context, in UserInput, materialIDs []string) data.MutationResult[User] {
	user, err := u.Create(ctx, in)
	if err != nil {
		return data.Created(user, err)
	}

	var failed []error
	for _, materialID := range materialIDs {
		if err := u.AddFavorite(ctx, string(user.ID), materialID); err != nil {
			failed = append(failed, fmt.Errorf("favorite %s: %w", materialID, err))
			continue
		}
		user.Favorites = append(user.Favorites, Favorite{MaterialID: ID(materialID)})
	}

	result := data.Created(user, nil)
	if len(failed) > 0 {
		result.SecondaryErr = errors.Join(failed...)
	}
	return result
}

func (u *Users) favoritesPath(userID string) string {
	return u.itemPath(userID) + "/favorites"
}
