package model

import (
	"encoding/json"
	"strings"
)

// Category groups activities by kind (adventure, beach, etc.).
type Category string

const (
	CategoryAdventure Category = "adventure"
	CategoryBeach     Category = "beach"
	CategoryFood      Category = "food"
	CategoryTravel    Category = "travel"
	CategoryFun       Category = "fun"
	CategoryOther     Category = "other"
)

// Categories lists every known category in picker order.
var Categories = []Category{
	CategoryAdventure,
	CategoryBeach,
	CategoryFood,
	CategoryTravel,
	CategoryFun,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryAdventure: "Adventure",
	CategoryBeach:     "Beach",
	CategoryFood:      "Food",
	CategoryTravel:    "Travel",
	CategoryFun:       "Fun",
	CategoryOther:     "Other",
}

// ParseCategory maps raw input to a known category, falling back to CategoryOther.
func ParseCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c.Valid() {
		return c
	}
	return CategoryOther
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the display name of the category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[CategoryOther]
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = CategoryOther
		return nil
	}
	*c = ParseCategory(*raw)
	return nil
}
