package models

import "strings"

// UserItem is a wardrobe piece the caller wants styled. It is never persisted.
type UserItem struct {
	ID          string  `json:"id" validate:"required"`
	Description string  `json:"description" validate:"required,min=1,max=500"`
	ImageURL    *string `json:"imageUrl,omitempty" validate:"omitempty,itemimage"`
}

func (item UserItem) HasImage() bool {
	return item.ImageURL != nil && *item.ImageURL != ""
}

type OutfitPreferences struct {
	Occasion Occasion `json:"occasion"`
	Vibe     int      `json:"vibe"` // 0 = minimal, 100 = bold
	Fit      Fit      `json:"fit"`
	Weather  Weather  `json:"weather"`
	Budget   Budget   `json:"budget"`
}

type OutfitItem struct {
	ItemType            string   `json:"item_type"`
	Description         string   `json:"description"`
	Color               string   `json:"color"`
	Material            *string  `json:"material,omitempty"`
	StyleTags           []string `json:"style_tags"`
	WhyItMatches        string   `json:"why_it_matches"`
	ShoppingSearchTerms *string  `json:"shopping_search_terms,omitempty"`
	BodyZone            BodyZone `json:"body_zone"`
}

// SearchTerms returns what an image search should look for when illustrating the item.
func (item OutfitItem) SearchTerms() string {
	if item.ShoppingSearchTerms != nil && *item.ShoppingSearchTerms != "" {
		return *item.ShoppingSearchTerms
	}
	return item.Description
}

type OutfitVariation struct {
	Name         VariationName `json:"name"`
	Suggestion   string        `json:"suggestion"`
	Items        []OutfitItem  `json:"items"`
	ColorPalette []string      `json:"color_palette"`
	StylingTips  []string      `json:"styling_tips"`
}

// SearchTerms joins the search terms of every item in order.
func (v OutfitVariation) SearchTerms() string {
	terms := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		terms = append(terms, item.SearchTerms())
	}
	return strings.Join(terms, " ")
}

// CacheKey identifies a variation for image lookups: its name plus item types.
func (v OutfitVariation) CacheKey() string {
	parts := []string{string(v.Name)}
	for _, item := range v.Items {
		parts = append(parts, item.ItemType)
	}
	return strings.Join(parts, "-")
}

// GenerationResult is the only shape handed back to callers: exactly three
// variations named Minimal, Street and Elevated.
type GenerationResult struct {
	Variations []OutfitVariation `json:"variations"`
}

type OutfitImage struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Thumbnail       string  `json:"thumbnail"`
	Photographer    *string `json:"photographer,omitempty"`
	PhotographerURL *string `json:"photographerUrl,omitempty"`
	Description     *string `json:"description,omitempty"`
}
