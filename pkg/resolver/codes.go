package resolver

import (
	"sort"
	"strings"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Unknown is the sentinel for missing or unrecognized categorical values
const Unknown = "Unknown"

// UnknownPolicy decides what happens to a value the dictionary does not recognize
type UnknownPolicy int

const (
	// PinUnknown replaces unrecognized values with Unknown (closed vocabulary)
	PinUnknown UnknownPolicy = iota
	// PassThrough keeps unrecognized values, trimmed
	PassThrough
)

func (p UnknownPolicy) String() string {
	if p == PassThrough {
		return "pass_through"
	}
	return "pin_unknown"
}

// CodeMap translates abbreviations and known variants of one field to its canonical vocabulary
type CodeMap struct {
	Name    string
	Policy  UnknownPolicy
	entries map[string]string
	vocab   []string
}

// NewCodeMap builds a dictionary. Keys match case-insensitively after trim;
// every canonical value also maps to itself.
func NewCodeMap(name string, policy UnknownPolicy, entries map[string]string) *CodeMap {
	m := &CodeMap{Name: name, Policy: policy, entries: make(map[string]string, len(entries)*2)}
	seen := make(map[string]bool)
	for from, to := range entries {
		m.entries[strings.ToLower(strings.TrimSpace(from))] = to
		m.entries[strings.ToLower(to)] = to
		if !seen[to] {
			seen[to] = true
			m.vocab = append(m.vocab, to)
		}
	}
	sort.Strings(m.vocab)
	return m
}

// Map returns the canonical value and whether a dictionary entry matched.
// Blank values always map to Unknown.
func (m *CodeMap) Map(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Unknown, false
	}
	if to, ok := m.entries[strings.ToLower(trimmed)]; ok {
		return to, true
	}
	if m.Policy == PassThrough {
		return trimmed, false
	}
	return Unknown, false
}

// Vocabulary lists the closed set of values the field may hold, including Unknown.
// Pass-through fields have no closed vocabulary and return nil.
func (m *CodeMap) Vocabulary() []string {
	if m.Policy == PassThrough {
		return nil
	}
	out := make([]string, 0, len(m.vocab)+1)
	out = append(out, m.vocab...)
	return append(out, Unknown)
}

// Contains reports whether a value is a member of the closed vocabulary
func (m *CodeMap) Contains(value string) bool {
	if m.Policy == PassThrough {
		return true
	}
	if value == Unknown {
		return true
	}
	for _, v := range m.vocab {
		if v == value {
			return true
		}
	}
	return false
}

// Dictionaries is the set of code maps applied by the cleansing engine
type Dictionaries struct {
	MaritalStatus *CodeMap
	Gender        *CodeMap
	ProductLine   *CodeMap
	Maintenance   *CodeMap
	StoreType     *CodeMap
	Country       *CodeMap
}

// DefaultDictionaries returns the standard code maps
func DefaultDictionaries() *Dictionaries {
	return &Dictionaries{
		MaritalStatus: NewCodeMap("marital_status", PinUnknown, map[string]string{
			"S": "Single", "M": "Married", "D": "Divorced", "W": "Widowed",
		}),
		Gender: NewCodeMap("gender", PinUnknown, map[string]string{
			"M": "Male", "F": "Female",
		}),
		ProductLine: NewCodeMap("product_line", PinUnknown, map[string]string{
			"M": "Mountain", "R": "Road", "S": "Other Sales", "T": "Touring",
		}),
		Maintenance: NewCodeMap("maintenance_required", PinUnknown, map[string]string{
			"yes": "Yes", "y": "Yes", "true": "Yes", "1": "Yes",
			"no": "No", "n": "No", "false": "No", "0": "No",
		}),
		StoreType: NewCodeMap("store_type", PinUnknown, map[string]string{
			"R": "Retail", "O": "Outlet", "W": "Online", "Web": "Online",
		}),
		Country: NewCodeMap("country", PassThrough, map[string]string{
			"US": "United States", "USA": "United States",
			"DE": "Germany",
			"UK": "United Kingdom", "GB": "United Kingdom",
			"AU": "Australia",
			"CA": "Canada",
			"FR": "France",
		}),
	}
}

// ForField returns the code map applied to a dataset field, if any
func (d *Dictionaries) ForField(kind model.Kind, field string) (*CodeMap, bool) {
	if d == nil {
		return nil, false
	}
	var m *CodeMap
	switch {
	case kind == model.KindCustomer && field == "marital_status":
		m = d.MaritalStatus
	case kind == model.KindCustomer && field == "gender":
		m = d.Gender
	case (kind == model.KindProduct || kind == model.KindProductSpec) && field == "product_line":
		m = d.ProductLine
	case kind == model.KindCategoryMap && field == "maintenance_required":
		m = d.Maintenance
	case kind == model.KindStore && field == "store_type":
		m = d.StoreType
	case (kind == model.KindStore || kind == model.KindSpatial || kind == model.KindTerritory) && field == "country":
		m = d.Country
	}
	return m, m != nil
}

// ClosedFields lists the coded fields with a closed vocabulary, per dataset
func (d *Dictionaries) ClosedFields() map[model.Kind][]string {
	return map[model.Kind][]string{
		model.KindCustomer:    {"marital_status", "gender"},
		model.KindProduct:     {"product_line"},
		model.KindProductSpec: {"product_line"},
		model.KindCategoryMap: {"maintenance_required"},
		model.KindStore:       {"store_type"},
	}
}
