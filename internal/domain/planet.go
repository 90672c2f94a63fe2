package domain

import "time"

type Planet string

const (
	PlanetChat     Planet = "chat"
	PlanetCode     Planet = "code"
	PlanetArt      Planet = "art"
	PlanetMusic    Planet = "music"
	PlanetWardrobe Planet = "wardrobe"
)

// Planets lists every planet a user can spend on
var Planets = []Planet{PlanetChat, PlanetCode, PlanetArt, PlanetMusic, PlanetWardrobe}

// ParsePlanet validates a planet name coming from a URL or payload
func ParsePlanet(s string) (Planet, bool) {
	for _, p := range Planets {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Interaction types priced by the gateway
const (
	InteractionMessage     = "message"
	InteractionSnippet     = "snippet"
	InteractionCreation    = "creation"
	InteractionComposition = "composition"
	InteractionUpload      = "upload"
	InteractionSuggestion  = "suggestion"
)

// prices holds the server-side cost of each interaction, in Stardust
var prices = map[Planet]map[string]int64{
	PlanetChat:     {InteractionMessage: 5},
	PlanetCode:     {InteractionSnippet: 5},
	PlanetArt:      {InteractionCreation: 20},
	PlanetMusic:    {InteractionComposition: 15},
	PlanetWardrobe: {InteractionUpload: 10, InteractionSuggestion: 25},
}

// Price returns the cost of an interaction type on a planet
func Price(p Planet, interactionType string) (int64, bool) {
	byType, ok := prices[p]
	if !ok {
		return 0, false
	}
	cost, ok := byType[interactionType]
	return cost, ok
}

// PriceList returns a copy of the pricing table for display
func PriceList() map[Planet]map[string]int64 {
	out := make(map[Planet]map[string]int64, len(prices))
	for p, byType := range prices {
		m := make(map[string]int64, len(byType))
		for k, v := range byType {
			m[k] = v
		}
		out[p] = m
	}
	return out
}

// PlanetInteraction is a billed (or free) action taken on a planet.
// TransactionID points at the debit that paid for it.
type PlanetInteraction struct {
	ID            string         `db:"id" json:"id"`
	Seq           int64          `db:"seq" json:"-"`
	UserID        string         `db:"user_id" json:"user_id"`
	PlanetName    Planet         `db:"planet_name" json:"planet_name"`
	Type          string         `db:"type" json:"type"`
	Content       string         `db:"content" json:"content"`
	StardustCost  int64          `db:"stardust_cost" json:"stardust_cost"`
	Metadata      map[string]any `db:"metadata" json:"metadata,omitempty"`
	TransactionID string         `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"timestamp"`
}

type PlanetPreferences struct {
	UserID      string         `db:"user_id" json:"user_id"`
	PlanetName  Planet         `db:"planet_name" json:"planet_name"`
	Preferences map[string]any `db:"preferences" json:"preferences"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// MergePreferences overlays update on base and returns a new map.
// Keys absent from update keep their old value.
func MergePreferences(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
