package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDatasetUnavailable marks a dataset whose raw input could not be loaded.
// Cleansing a dataset in this state fails deterministically.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// Kind identifies one of the nine source datasets
type Kind string

const (
	KindCustomer    Kind = "crm_customer"
	KindProduct     Kind = "crm_product"
	KindSalesOrder  Kind = "crm_sales_order"
	KindCategoryMap Kind = "erp_category_map"
	KindProductSpec Kind = "erp_product_spec"
	KindStore       Kind = "erp_store"
	KindReturn      Kind = "erp_return"
	KindSpatial     Kind = "erp_spatial"
	KindTerritory   Kind = "erp_territory"
)

// SourceSystem is the upstream system a dataset is extracted from
type SourceSystem string

const (
	SystemCRM SourceSystem = "crm"
	SystemERP SourceSystem = "erp"
)

// Stage selects raw (bronze) or clean (silver) record naming and storage
type Stage string

const (
	StageRaw   Stage = "raw"
	StageClean Stage = "clean"
)

// ParseStage converts a user supplied stage name
func ParseStage(s string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "bronze", "":
		return StageRaw, nil
	case "clean", "silver":
		return StageClean, nil
	default:
		return "", fmt.Errorf("unknown stage %q (expected raw or clean)", s)
	}
}

// DedupStrategy selects how duplicates of a business key are resolved
type DedupStrategy string

const (
	// DedupLatest keeps the record with the most recent value of a date field
	DedupLatest DedupStrategy = "latest"
	// DedupFirst keeps the first record encountered in input order
	DedupFirst DedupStrategy = "first"
)

// DedupPolicy is the keep-one rule for a dataset. Ties on the recency field,
// and null recency values, resolve to original input order.
type DedupPolicy struct {
	Strategy DedupStrategy `koanf:"strategy" json:"strategy" yaml:"strategy"`
	Field    string        `koanf:"field" json:"field,omitempty" yaml:"field,omitempty"`
}

// String renders the policy as strategy[:field]
func (p DedupPolicy) String() string {
	if p.Field == "" {
		return string(p.Strategy)
	}
	return string(p.Strategy) + ":" + p.Field
}

// Dataset describes one dataset kind: identity, schema and cleansing dependencies
type Dataset struct {
	Kind      Kind
	Letter    string
	System    SourceSystem
	FileName  string
	Metadata  TableMetadata
	Dedup     DedupPolicy
	DependsOn []Kind
}

// Key returns the clean business key column name
func (d *Dataset) Key() string {
	return d.Metadata.KeyColumn().Name
}

// Field returns the name a clean column carries at the given stage
func (d *Dataset) Field(name string, stage Stage) string {
	if col := d.Metadata.GetColumnByName(name); col != nil {
		return col.NameFor(stage)
	}
	return name
}

func text(name string) Column { return Column{Name: name, DataType: TypeText, Nullable: true} }
func date(name string) Column { return Column{Name: name, DataType: TypeDate, Nullable: true} }
func decimal(name string) Column {
	return Column{Name: name, DataType: TypeDecimal, Nullable: true}
}
func integer(name string) Column { return Column{Name: name, DataType: TypeInt, Nullable: true} }
func key(name, dataType string) Column {
	return Column{Name: name, DataType: dataType, IsPrimaryKey: true}
}

var registry = map[Kind]*Dataset{
	KindCustomer: {
		Kind: KindCustomer, Letter: "A", System: SystemCRM, FileName: "cust_info.csv",
		Metadata: TableMetadata{Table: string(KindCustomer), PrimaryKeys: []string{"customer_id"}, Columns: []Column{
			key("customer_id", TypeInt), text("customer_number"), text("first_name"), text("last_name"),
			text("marital_status"), text("gender"), date("birth_date"), date("create_date"),
		}},
		Dedup: DedupPolicy{Strategy: DedupLatest, Field: "create_date"},
	},
	KindProduct: {
		Kind: KindProduct, Letter: "B", System: SystemCRM, FileName: "prd_info.csv",
		Metadata: TableMetadata{Table: string(KindProduct), PrimaryKeys: []string{"product_id"}, Columns: []Column{
			key("product_id", TypeText), text("product_name"), text("product_line"), decimal("cost"),
			date("start_date"), date("end_date"),
		}},
		Dedup: DedupPolicy{Strategy: DedupLatest, Field: "start_date"},
	},
	KindSalesOrder: {
		Kind: KindSalesOrder, Letter: "C", System: SystemCRM, FileName: "sales_details.csv",
		Metadata: TableMetadata{Table: string(KindSalesOrder), PrimaryKeys: []string{"order_number"}, Columns: []Column{
			key("order_number", TypeText), text("product_id"), integer("customer_id"), text("store_id"),
			date("order_date"), {Name: "ship_date", RawName: "shiping_date", DataType: TypeDate, Nullable: true},
			date("due_date"), integer("quantity"), decimal("price"), decimal("sales_amount"),
		}},
		Dedup: DedupPolicy{Strategy: DedupLatest, Field: "order_date"},
	},
	KindCategoryMap: {
		Kind: KindCategoryMap, Letter: "D", System: SystemERP, FileName: "px_cat.csv",
		Metadata: TableMetadata{Table: string(KindCategoryMap), PrimaryKeys: []string{"category_id"}, Columns: []Column{
			key("category_id", TypeText), text("category"), text("subcategory"), text("maintenance_required"),
		}},
		Dedup: DedupPolicy{Strategy: DedupFirst},
	},
	KindProductSpec: {
		Kind: KindProductSpec, Letter: "E", System: SystemERP, FileName: "prd_spec.csv",
		Metadata: TableMetadata{Table: string(KindProductSpec), PrimaryKeys: []string{"product_id"}, Columns: []Column{
			key("product_id", TypeText), text("subcategory"), text("color"), decimal("weight"), text("product_line"),
		}},
		Dedup:     DedupPolicy{Strategy: DedupFirst},
		DependsOn: []Kind{KindCategoryMap},
	},
	KindStore: {
		Kind: KindStore, Letter: "F", System: SystemERP, FileName: "stores.csv",
		Metadata: TableMetadata{Table: string(KindStore), PrimaryKeys: []string{"store_id"}, Columns: []Column{
			key("store_id", TypeText), text("store_name"), text("city"), text("country"), text("store_type"),
			date("open_date"),
		}},
		Dedup: DedupPolicy{Strategy: DedupLatest, Field: "open_date"},
	},
	KindReturn: {
		Kind: KindReturn, Letter: "G", System: SystemERP, FileName: "returns.csv",
		Metadata: TableMetadata{Table: string(KindReturn), PrimaryKeys: []string{"return_id"}, Columns: []Column{
			key("return_id", TypeInt), text("order_number"), date("return_date"), decimal("return_amount"),
			text("return_reason"),
		}},
		Dedup: DedupPolicy{Strategy: DedupLatest, Field: "return_date"},
	},
	KindSpatial: {
		Kind: KindSpatial, Letter: "H", System: SystemERP, FileName: "cust_loc.csv",
		Metadata: TableMetadata{Table: string(KindSpatial), PrimaryKeys: []string{"customer_id"}, Columns: []Column{
			key("customer_id", TypeInt), text("city"), text("country"),
		}},
		Dedup:     DedupPolicy{Strategy: DedupFirst},
		DependsOn: []Kind{KindTerritory},
	},
	KindTerritory: {
		Kind: KindTerritory, Letter: "I", System: SystemERP, FileName: "territory.csv",
		Metadata: TableMetadata{Table: string(KindTerritory), PrimaryKeys: []string{"city"}, Columns: []Column{
			key("city", TypeText), text("country"), text("continent"),
		}},
		Dedup: DedupPolicy{Strategy: DedupFirst},
	},
}

// Lookup returns the dataset descriptor for a kind
func Lookup(kind Kind) (*Dataset, bool) {
	ds, ok := registry[kind]
	return ds, ok
}

// MustLookup returns the dataset descriptor for a kind and panics on unknown kinds.
// Only for use with the Kind constants.
func MustLookup(kind Kind) *Dataset {
	ds, ok := registry[kind]
	if !ok {
		panic(fmt.Sprintf("unknown dataset kind %q", kind))
	}
	return ds
}

// AllKinds lists every dataset kind in catalog (letter) order
func AllKinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return registry[kinds[i]].Letter < registry[kinds[j]].Letter
	})
	return kinds
}

// ParseKinds validates a list of dataset names; an empty list means all datasets
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return AllKinds(), nil
	}
	seen := make(map[Kind]bool, len(names))
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k := Kind(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := registry[k]; !ok {
			return nil, fmt.Errorf("unknown dataset %q", n)
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
