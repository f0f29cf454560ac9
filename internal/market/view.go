package market

import "github.com/matmarket/market-cli/internal/data"

// ViewKind is the kind of collection a browse view shows.
type ViewKind int

const (
	ViewCategories ViewKind = iota
	ViewMaterials
	ViewListings
)

func (k ViewKind) String() string {
	switch k {
	case ViewCategories:
		return "categories"
	case ViewMaterials:
		return "materials"
	case ViewListings:
		return "listings"
	}
	return "unknown"
}

// ViewMode is the browse position: all categories, the materials of one
// category, or the listings of one material. Fields are set only by the
// constructors and transitions, so a mode never carries ids it does not use.
type ViewMode struct {
	kind          ViewKind
	categoryID    string
	categoryLabel string
	materialID    string
	materialLabel string
}

// CategoriesView is the root view.
func CategoriesView() ViewMode {
	return ViewMode{kind: ViewCategories}
}

// MaterialsView shows the materials of one category.
func MaterialsView(categoryID, label string) ViewMode {
	return ViewMode{kind: ViewMaterials, categoryID: categoryID, categoryLabel: label}
}

// ListingsView shows the listings of one material. categoryID may be empty
// when the view was opened directly rather than by drilling down.
func ListingsView(materialID, label, categoryID, categoryLabel string) ViewMode {
	return ViewMode{
		kind:          ViewListings,
		materialID:    materialID,
		materialLabel: label,
		categoryID:    categoryID,
		categoryLabel: categoryLabel,
	}
}

// Kind returns the view kind.
func (v ViewMode) Kind() ViewKind { return v.kind }

// CategoryID returns the category being browsed, if any.
func (v ViewMode) CategoryID() string { return v.categoryID }

// MaterialID returns the material being browsed, if any.
func (v ViewMode) MaterialID() string { return v.materialID }

// Drill moves one level down into the selected row. Listings are the
// deepest level, so drilling there reports false.
func (v ViewMode) Drill(id, label string) (ViewMode, bool) {
	switch v.kind {
	case ViewCategories:
		return MaterialsView(id, label), true
	case ViewMaterials:
		return ListingsView(id, label, v.categoryID, v.categoryLabel), true
	}
	return v, false
}

// Back moves one level up. From a listings view opened without a category
// it returns to the root. The root reports false.
func (v ViewMode) Back() (ViewMode, bool) {
	switch v.kind {
	case ViewMaterials:
		return CategoriesView(), true
	case ViewListings:
		if v.categoryID == "" {
			return CategoriesView(), true
		}
		return MaterialsView(v.categoryID, v.categoryLabel), true
	}
	return v, false
}

// Filters returns the query filters that scope the view's collection.
func (v ViewMode) Filters() data.Filters {
	switch v.kind {
	case ViewMaterials:
		return data.Filters{"categoryId": v.categoryID}
	case ViewListings:
		return data.Filters{"materialId": v.materialID}
	}
	return data.Filters{}
}

// Title is the heading shown for the view.
func (v ViewMode) Title() string {
	switch v.kind {
	case ViewMaterials:
		return "Materials · " + v.categoryLabel
	case ViewListings:
		return "Listings · " + v.materialLabel
	}
	return "Categories"
}

// Breadcrumb returns the labels from the root to this view.
func (v ViewMode) Breadcrumb() []string {
	crumbs := []string{"Categories"}
	if v.categoryLabel != "" {
		crumbs = append(crumbs, v.categoryLabel)
	}
	if v.kind == ViewListings && v.materialLabel != "" {
		crumbs = append(crumbs, v.materialLabel)
	}
	return crumbs
}
