package domain

import "time"

type ClothingCategory string

const (
	CategoryTop       ClothingCategory = "top"
	CategoryBottom    ClothingCategory = "bottom"
	CategoryDress     ClothingCategory = "dress"
	CategoryOuterwear ClothingCategory = "outerwear"
	CategoryShoes     ClothingCategory = "shoes"
	CategoryAccessory ClothingCategory = "accessory"
)

// Valid reports whether c is one of the known categories
func (c ClothingCategory) Valid() bool {
	switch c {
	case CategoryTop, CategoryBottom, CategoryDress, CategoryOuterwear, CategoryShoes, CategoryAccessory:
		return true
	}
	return false
}

type ClothingMetadata struct {
	AITags     []string `json:"ai_tags,omitempty"`
	Confidence float64  `json:"confidence"`
	UserNotes  string   `json:"user_notes,omitempty"`
}

type ClothingItem struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	ImageURL      string           `db:"image_url" json:"image_url"`
	ImageKey      string           `db:"image_key" json:"-"`
	Category      ClothingCategory `db:"category" json:"category"`
	Tags          []string         `db:"tags" json:"tags"`
	Colors        []string         `db:"colors" json:"colors"`
	Seasons       []string         `db:"seasons" json:"season"`
	Styles        []string         `db:"styles" json:"style"`
	Occasions     []string         `db:"occasions" json:"occasions"`
	Metadata      ClothingMetadata `db:"metadata" json:"metadata"`
	InteractionID string           `db:"interaction_id" json:"interaction_id,omitempty"`
	LastWorn      *time.Time       `db:"last_worn_at" json:"last_worn,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

type SuggestionMetadata struct {
	Weather      string  `json:"weather,omitempty"`
	AIConfidence float64 `json:"ai_confidence"`
}

type OutfitSuggestion struct {
	ID            string             `db:"id" json:"id"`
	UserID        string             `db:"user_id" json:"user_id"`
	ItemIDs       []string           `db:"item_ids" json:"item_ids"`
	Items         []ClothingItem     `json:"items,omitempty"`
	Occasion      string             `db:"occasion" json:"occasion"`
	Style         string             `db:"style" json:"style"`
	Season        string             `db:"season" json:"season"`
	Explanation   string             `db:"explanation" json:"explanation"`
	Metadata      SuggestionMetadata `db:"metadata" json:"metadata"`
	InteractionID string             `db:"interaction_id" json:"interaction_id,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// ClothingAnalysis is what the vision adapter extracts from a photo
type ClothingAnalysis struct {
	Tags       []string `json:"tags"`
	Colors     []string `json:"colors"`
	Seasons    []string `json:"seasons"`
	Styles     []string `json:"styles"`
	Occasions  []string `json:"occasions"`
	Confidence float64  `json:"confidence"`
}

// OutfitProposal is what the stylist adapter returns
type OutfitProposal struct {
	ItemIDs     []string       `json:"items"`
	Explanation string         `json:"explanation"`
	Style       string         `json:"style"`
	Season      string         `json:"season"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// SuggestRequest is the stylist input: the candidate items plus the brief
type SuggestRequest struct {
	Wardrobe []ClothingItem `json:"wardrobe"`
	Occasion string         `json:"occasion"`
	Style    string         `json:"style,omitempty"`
}
