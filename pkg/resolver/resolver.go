// Package resolver holds the read-only reference lookups used while cleansing:
// the territory authority, the category normalizer and the code dictionaries.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// ErrResolverUnavailable is returned when a resolver's reference table is missing or empty
var ErrResolverUnavailable = errors.New("resolver unavailable")

// Territory is the authoritative location of a city
type Territory struct {
	Country   string
	Continent string
}

// TerritoryResolver maps a city to its country and continent
type TerritoryResolver struct {
	byCity map[string]Territory
}

// NewTerritoryResolver builds the resolver from a clean territory batch
func NewTerritoryResolver(batch *model.Batch) (*TerritoryResolver, error) {
	if batch == nil || batch.Len() == 0 {
		return nil, fmt.Errorf("territory: %w", ErrResolverUnavailable)
	}
	if batch.Dataset != model.KindTerritory {
		return nil, fmt.Errorf("territory resolver cannot be built from %s", batch.Dataset)
	}

	r := &TerritoryResolver{byCity: make(map[string]Territory, batch.Len())}
	for _, row := range batch.Rows {
		city := textValue(row["city"])
		if city == "" {
			continue
		}
		if _, exists := r.byCity[city]; exists {
			continue
		}
		r.byCity[city] = Territory{
			Country:   textValue(row["country"]),
			Continent: textValue(row["continent"]),
		}
	}
	return r, nil
}

// Resolve looks up a city after trimming; the match is case-sensitive
func (r *TerritoryResolver) Resolve(city string) (Territory, bool) {
	if r == nil {
		return Territory{}, false
	}
	t, ok := r.byCity[strings.TrimSpace(city)]
	return t, ok
}

// Len returns the number of cities known to the resolver
func (r *TerritoryResolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byCity)
}

// CategoryNormalizer maps subcategory labels to their canonical singular form
type CategoryNormalizer struct {
	substitutions map[string]string
	known         map[string]bool
}

// NewCategoryNormalizer builds a normalizer from a substitution table and the
// clean category map. The category map is only used to report coverage; a nil
// map yields a normalizer that knows no subcategories.
func NewCategoryNormalizer(substitutions map[string]string, categoryMap *model.Batch, logger *zap.Logger) (*CategoryNormalizer, error) {
	if len(substitutions) == 0 {
		return nil, fmt.Errorf("category normalizer: empty substitution table: %w", ErrResolverUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &CategoryNormalizer{
		substitutions: make(map[string]string, len(substitutions)),
		known:         make(map[string]bool),
	}
	for from, to := range substitutions {
		n.substitutions[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}

	if categoryMap != nil {
		for _, row := range categoryMap.Rows {
			if sub := textValue(row["subcategory"]); sub != "" {
				n.known[sub] = true
			}
		}
		for from, to := range n.substitutions {
			if !n.known[to] {
				logger.Debug("Substitution target not present in category map",
					zap.String("from", from),
					zap.String("to", to))
			}
		}
	}
	return n, nil
}

// Normalize returns the canonical label; labels not in the table pass through trimmed
func (n *CategoryNormalizer) Normalize(label string) string {
	trimmed := strings.TrimSpace(label)
	if n == nil {
		return trimmed
	}
	if to, ok := n.substitutions[trimmed]; ok {
		return to
	}
	return trimmed
}

// Known reports whether a (normalized) subcategory exists in the category map
func (n *CategoryNormalizer) Known(subcategory string) bool {
	if n == nil {
		return false
	}
	return n.known[strings.TrimSpace(subcategory)]
}

// DefaultCategorySubstitutions returns the plural to singular table for bike component labels
func DefaultCategorySubstitutions() map[string]string {
	return map[string]string{
		"Tires":             "Tire",
		"Helmets":           "Helmet",
		"Gloves":            "Glove",
		"Jerseys":           "Jersey",
		"Caps":              "Cap",
		"Socks":             "Sock",
		"Vests":             "Vest",
		"Bottles and Cages": "Bottle and Cage",
		"Bike Racks":        "Bike Rack",
		"Bike Stands":       "Bike Stand",
		"Lights":            "Light",
		"Locks":             "Lock",
		"Pumps":             "Pump",
		"Fenders":           "Fender",
		"Brakes":            "Brake",
		"Chains":            "Chain",
		"Wheels":            "Wheel",
		"Saddles":           "Saddle",
		"Forks":             "Fork",
		"Handlebars":        "Handlebar",
		"Headsets":          "Headset",
		"Cranksets":         "Crankset",
		"Derailleurs":       "Derailleur",
		"Bottom Brackets":   "Bottom Bracket",
	}
}

// Set bundles the resolvers handed to the cleansing engine for one run.
// Members are nil when unavailable.
type Set struct {
	Territory *TerritoryResolver
	Category  *CategoryNormalizer
	Codes     *Dictionaries
}

func textValue(v interface{}) string {
	return model.KeyString(v)
}
