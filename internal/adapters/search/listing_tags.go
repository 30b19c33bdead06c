package search

import (
	"sort"
	"strings"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// MaxIndexedTags caps the tag bag stored with each listing document
const MaxIndexedTags = 50

// buildListingTags collects the lowercased descriptive terms guests search by
func buildListingTags(l *entities.Listing) []string {
	if l == nil {
		return nil
	}

	set := make(map[string]struct{})
	add(set, l.Address.City, l.Address.State, l.Address.Country)
	if l.Stay != nil {
		add(set, l.Stay.PropertyType)
		add(set, l.Stay.Amenities...)
	}
	if l.Food != nil {
		add(set, l.Food.CuisineType, l.Food.Language)
	}

	return toSlice(set, MaxIndexedTags)
}

func add(set map[string]struct{}, terms ...string) {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
}

func toSlice(set map[string]struct{}, limit int) []string {
	if len(set) == 0 {
		return nil
	}
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
