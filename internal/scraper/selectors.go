package scraper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
)

type SelectorConfig struct {
	SearchList ListSelectors `json:"search_list"`
}

type ListSelectors struct {
	// Results matches the result list itself. When it is present but holds no
	// items, the search simply has no results.
	Results string `json:"results"`
	// Item matches one listing container. Several layouts may be joined with ','.
	Item     string       `json:"item"`
	Elements ListElements `json:"elements"`
}

// ListElements holds candidate selectors per field, tried in order.
type ListElements struct {
	Link     []string `json:"link"`
	Title    []string `json:"title"`
	Price    []string `json:"price"`
	Location []string `json:"location"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}
	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.SearchList.Item == "" || len(config.SearchList.Elements.Link) == 0 || len(config.SearchList.Elements.Price) == 0 {
		return SelectorConfig{}, fmt.Errorf("selector config is missing item, link or price selectors")
	}
	return config, nil
}

// DefaultSelectors covers both Pararius search result layouts.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		SearchList: ListSelectors{
			Results: "ul.search-list",
			Item:    "section.listing-search-item, li.search-list__item--listing",
			Elements: ListElements{
				Link:     []string{"a.listing-search-item__link--title", "a.listing-search-item__link", "a[href]"},
				Title:    []string{".listing-search-item__title", "h2"},
				Price:    []string{".listing-search-item__price", ".listing-price"},
				Location: []string{".listing-search-item__sub-title", ".listing-search-item__location"},
			},
		},
	}
}

// firstMatch returns the first element matched by the first selector that matches anything.
func firstMatch(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}
