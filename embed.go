package main

import (
	"embed"
	"encoding/json"

	"movienight/models"
)

//go:embed data/catalog.json
var bundled embed.FS

// staticCatalog returns the bundled fallback entry list.
func staticCatalog() ([]models.Entry, error) {
	data, err := bundled.ReadFile("data/catalog.json")
	if err != nil {
		return nil, err
	}

	var entries []models.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
