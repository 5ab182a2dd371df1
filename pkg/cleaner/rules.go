package cleaner

import (
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// dateOrder nulls Later when it falls before Earlier on the same record
type dateOrder struct {
	Later   string
	Earlier string
}

// dateWindow nulls Field when it is after the processing time (NotFuture) or
// before Floor
type dateWindow struct {
	Field     string
	NotFuture bool
	Floor     time.Time
}

// datasetRules declares the field-level rules for one dataset. Field names are
// clean names; the engine maps them to raw names while it works.
type datasetRules struct {
	// person names: trimmed then proper-cased
	properCase []string

	// free text that passes through trimmed, blank becomes Unknown
	unknownIfBlank []string

	// numeric fields that must be positive
	positive []string

	// currency fields that are sign-corrected
	absolute []string

	dateOrders  []dateOrder
	dateWindows []dateWindow

	// sales_amount = quantity * price
	recomputeTotal bool

	// subcategory normalized through the category normalizer
	normalizeCategory string

	// country corrected through the territory resolver using city
	territoryCorrection bool
}

var minBirthDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

func rulesFor(kind model.Kind) datasetRules {
	switch kind {
	case model.KindCustomer:
		return datasetRules{
			properCase: []string{"first_name", "last_name"},
			dateWindows: []dateWindow{
				{Field: "birth_date", NotFuture: true, Floor: minBirthDate},
			},
		}
	case model.KindProduct:
		return datasetRules{
			positive:   []string{"cost"},
			dateOrders: []dateOrder{{Later: "end_date", Earlier: "start_date"}},
		}
	case model.KindSalesOrder:
		return datasetRules{
			positive: []string{"quantity", "price"},
			dateOrders: []dateOrder{
				{Later: "ship_date", Earlier: "order_date"},
				{Later: "due_date", Earlier: "order_date"},
			},
			recomputeTotal: true,
		}
	case model.KindProductSpec:
		return datasetRules{
			unknownIfBlank:    []string{"color"},
			positive:          []string{"weight"},
			normalizeCategory: "subcategory",
		}
	case model.KindStore:
		return datasetRules{
			dateWindows: []dateWindow{{Field: "open_date", NotFuture: true}},
		}
	case model.KindReturn:
		return datasetRules{
			unknownIfBlank: []string{"return_reason"},
			absolute:       []string{"return_amount"},
		}
	case model.KindSpatial:
		return datasetRules{territoryCorrection: true}
	case model.KindTerritory:
		return datasetRules{unknownIfBlank: []string{"continent"}}
	default:
		return datasetRules{}
	}
}
