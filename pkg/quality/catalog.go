package quality

import (
	"regexp"
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

var (
	orderNumberPattern = regexp.MustCompile(`^SO\d+$`)
	minBirthDate       = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Catalog returns every check in catalog order: per-dataset checks by category,
// then cross-dataset checks
func Catalog() []Check {
	var checks []Check

	// Completeness
	for _, kind := range model.AllKinds() {
		checks = append(checks, blankKey(kind))
	}
	checks = append(checks,
		blankFields("A1b", model.KindCustomer, "customers with blank first or last name", "first_name", "last_name"),
		blankFields("C1b", model.KindSalesOrder, "sales orders with a blank product, customer or store reference",
			"product_id", "customer_id", "store_id"),
	)

	// Uniqueness
	for _, kind := range model.AllKinds() {
		checks = append(checks, keyDuplicates(kind))
	}

	// Validity
	checks = append(checks,
		probe("A3a", model.KindCustomer, "gender", "distinct customer gender values"),
		probe("A3b", model.KindCustomer, "marital_status", "distinct customer marital status values"),
		untrimmed("A3c", model.KindCustomer, "customer names with leading or trailing whitespace", "first_name", "last_name"),
		probe("B3a", model.KindProduct, "product_line", "distinct product line values"),
		nonPositive("B3b", model.KindProduct, "products with zero or negative cost", "cost"),
		pattern("C3a", model.KindSalesOrder, "order_number", orderNumberPattern, "order numbers not matching SO<digits>"),
		nonPositive("C3b", model.KindSalesOrder, "sales orders with zero or negative quantity or price", "quantity", "price"),
		probe("D3a", model.KindCategoryMap, "maintenance_required", "distinct maintenance flag values"),
		probe("E3a", model.KindProductSpec, "subcategory", "distinct product spec subcategory values"),
		probe("F3a", model.KindStore, "store_type", "distinct store type values"),
		negative("G3a", model.KindReturn, "return_amount", "returns with a negative amount"),
		probe("H3a", model.KindSpatial, "country", "distinct customer location country values"),
		probe("I3a", model.KindTerritory, "continent", "distinct territory continent values"),
	)

	// Consistency
	checks = append(checks,
		dateBefore("B4a", model.KindProduct, "end_date", "start_date", "products ending before they start"),
		salesTotalMismatch(),
		dateBefore("C4b", model.KindSalesOrder, "ship_date", "order_date", "sales orders shipped before they were ordered"),
		dateBefore("C4c", model.KindSalesOrder, "due_date", "order_date", "sales orders due before they were ordered"),
	)

	// Referential integrity
	checks = append(checks,
		orphans("C5a", model.KindSalesOrder, "product_id", model.KindProduct, "",
			"sales orders referencing an unknown product", nil),
		orphans("C5b", model.KindSalesOrder, "customer_id", model.KindCustomer, "",
			"sales orders referencing an unknown customer", nil),
		orphans("C5c", model.KindSalesOrder, "store_id", model.KindStore, "",
			"sales orders referencing an unknown store", nil),
		orphans("G5a", model.KindReturn, "order_number", model.KindSalesOrder, "",
			"returns referencing an unknown sales order", nil),
		orphans("H5a", model.KindSpatial, "city", model.KindTerritory, "",
			"customer locations in a city missing from the territory reference", nil),
		orphans("E5a", model.KindProductSpec, "subcategory", model.KindCategoryMap, "subcategory",
			"product spec subcategories (normalized) missing from the category map",
			func(ec *evalContext, s string) string { return ec.categories.Normalize(s) }),
		orphans("B5a", model.KindProduct, "product_id", model.KindProductSpec, "",
			"CRM products without an ERP product spec", nil),
	)

	// Timeliness
	checks = append(checks,
		dateWindow("A6a", model.KindCustomer, "birth_date", "customers born in the future or before 1900",
			func(ec *evalContext, d time.Time) bool { return d.After(ec.now) || d.Before(minBirthDate) }),
		dateWindow("C6a", model.KindSalesOrder, "order_date", "sales orders dated before the history floor",
			func(ec *evalContext, d time.Time) bool { return d.Before(ec.opts.HistoryFloor) }),
		dateWindow("C6b", model.KindSalesOrder, "order_date", "sales orders dated in the future", inFuture),
		dateWindow("G6a", model.KindReturn, "return_date", "returns dated in the future", inFuture),
	)

	return append(checks, crossDatasetChecks()...)
}

// salesTotalMismatch samples orders whose stored amount is missing, non-positive
// or differs from quantity times price
func salesTotalMismatch() Check {
	kind := model.KindSalesOrder
	return Check{
		ID: "C4a", Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryConsistency, Metric: MetricSamples,
		Description: "sales amount missing, non-positive or not equal to quantity x price",
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			quantity, price, amount := ec.col(kind, "quantity"), ec.col(kind, "price"), ec.col(kind, "sales_amount")
			var res Result
			for _, row := range b.Rows {
				q, qok, err := number(row[quantity], "quantity")
				if err != nil {
					return Result{}, err
				}
				p, pok, err := number(row[price], "price")
				if err != nil {
					return Result{}, err
				}
				a, aok, err := number(row[amount], "sales_amount")
				if err != nil {
					return Result{}, err
				}
				if !qok || !pok || q <= 0 || p <= 0 {
					continue
				}
				if !aok || a <= 0 || a != q*p {
					res.Count++
					res.Samples = ec.sample(res.Samples, row)
				}
			}
			return res, nil
		},
	}
}
