package view

import (
	"strings"
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

var dimCustomerColumns = []string{
	"customer_id", "customer_number", "first_name", "last_name", "full_name", "gender",
	"marital_status", "birth_date", "age", "age_bracket", "create_date", "city", "country", "continent",
}

var dimProductColumns = []string{
	"product_id", "product_name", "product_line", "cost", "start_date", "end_date", "is_current",
	"subcategory", "category_id", "category", "maintenance_required", "color", "weight",
}

var dimStoreColumns = []string{
	"store_id", "store_name", "store_type", "city", "country", "open_date",
}

// ageBrackets are upper bounds (exclusive) with their labels, checked in order
var ageBrackets = []struct {
	below int
	label string
}{
	{25, "Under 25"},
	{35, "25-34"},
	{45, "35-44"},
	{55, "45-54"},
	{65, "55-64"},
}

// Age returns the completed years between birth and now. It reports false for
// a missing birth date or one after now.
func Age(birth interface{}, now time.Time) (int, bool) {
	b, ok, err := converter.ToDate(birth)
	if !ok || err != nil {
		return 0, false
	}
	now = converter.DateOnly(now)
	if b.After(now) {
		return 0, false
	}
	years := now.Year() - b.Year()
	if !sameOrLaterInYear(now, b) {
		years--
	}
	return years, true
}

// sameOrLaterInYear compares month and day so leap years do not shift birthdays
func sameOrLaterInYear(now, birth time.Time) bool {
	if now.Month() != birth.Month() {
		return now.Month() > birth.Month()
	}
	return now.Day() >= birth.Day()
}

// AgeBracket labels an age; a missing age is Unknown
func AgeBracket(age int, ok bool) string {
	if !ok {
		return resolver.Unknown
	}
	for _, b := range ageBrackets {
		if age < b.below {
			return b.label
		}
	}
	return "65+"
}

func buildDimCustomer(snap *snapshot, now time.Time) (*Table, error) {
	customers, err := snap.primary(model.KindCustomer)
	if err != nil {
		return nil, err
	}
	locations, err := snap.lookup(model.KindSpatial, "customer_id")
	if err != nil {
		return nil, err
	}
	territories, err := snap.lookup(model.KindTerritory, "city")
	if err != nil {
		return nil, err
	}

	rows := make([]model.Record, 0, customers.Len())
	for _, c := range customers.Rows {
		loc := locations[model.KeyString(c["customer_id"])]
		var territory model.Record
		if loc != nil {
			territory = territories[model.KeyString(loc["city"])]
		}
		age, hasAge := Age(c["birth_date"], now)

		row := model.Record{
			"customer_id":     c["customer_id"],
			"customer_number": c["customer_number"],
			"first_name":      c["first_name"],
			"last_name":       c["last_name"],
			"full_name":       fullName(c),
			"gender":          text(c, "gender"),
			"marital_status":  text(c, "marital_status"),
			"birth_date":      c["birth_date"],
			"age":             nil,
			"age_bracket":     AgeBracket(age, hasAge),
			"create_date":     c["create_date"],
			"city":            text(loc, "city"),
			"country":         text(loc, "country"),
			"continent":       text(territory, "continent"),
		}
		if hasAge {
			row["age"] = int64(age)
		}
		rows = append(rows, row)
	}
	return &Table{Columns: dimCustomerColumns, Rows: rows}, nil
}

func fullName(c model.Record) string {
	first := model.KeyString(c["first_name"])
	last := model.KeyString(c["last_name"])
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return resolver.Unknown
	}
	return name
}

// buildDimProduct joins product specs by product id and resolves the category
// through the normalized spec subcategory
func buildDimProduct(snap *snapshot, categories *resolver.CategoryNormalizer) (*Table, error) {
	products, err := snap.primary(model.KindProduct)
	if err != nil {
		return nil, err
	}
	specs, err := snap.lookup(model.KindProductSpec, "product_id")
	if err != nil {
		return nil, err
	}
	byName, err := snap.lookup(model.KindCategoryMap, "subcategory")
	if err != nil {
		return nil, err
	}

	rows := make([]model.Record, 0, products.Len())
	for _, p := range products.Rows {
		spec := specs[model.KeyString(p["product_id"])]
		var category model.Record
		if spec != nil {
			category = byName[categories.Normalize(model.KeyString(spec["subcategory"]))]
		}
		rows = append(rows, model.Record{
			"product_id":           p["product_id"],
			"product_name":         text(p, "product_name"),
			"product_line":         text(p, "product_line"),
			"cost":                 p["cost"],
			"start_date":           p["start_date"],
			"end_date":             p["end_date"],
			"is_current":           model.IsBlank(p["end_date"]),
			"subcategory":          text(spec, "subcategory"),
			"category_id":          text(category, "category_id"),
			"category":             text(category, "category"),
			"maintenance_required": text(category, "maintenance_required"),
			"color":                text(spec, "color"),
			"weight":               value(spec, "weight"),
		})
	}
	return &Table{Columns: dimProductColumns, Rows: rows}, nil
}

func buildDimStore(snap *snapshot) (*Table, error) {
	stores, err := snap.primary(model.KindStore)
	if err != nil {
		return nil, err
	}
	rows := make([]model.Record, 0, stores.Len())
	for _, s := range stores.Rows {
		rows = append(rows, model.Record{
			"store_id":   s["store_id"],
			"store_name": text(s, "store_name"),
			"store_type": text(s, "store_type"),
			"city":       text(s, "city"),
			"country":    text(s, "country"),
			"open_date":  s["open_date"],
		})
	}
	return &Table{Columns: dimStoreColumns, Rows: rows}, nil
}
