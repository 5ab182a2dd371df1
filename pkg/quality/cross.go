package quality

import (
	"math"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

func crossDatasetChecks() []Check {
	return []Check{
		{
			ID: "K1", Related: []model.Kind{model.KindProduct, model.KindProductSpec},
			Category: CategoryCrossDataset, Metric: MetricSamples,
			Description: "product line differs between CRM product and ERP product spec",
			eval:        productLineConflicts,
		},
		{
			ID: "K2", Related: []model.Kind{model.KindSpatial, model.KindTerritory},
			Category: CategoryCrossDataset, Metric: MetricSamples,
			Description: "customer location country disagrees with the territory reference",
			eval:        spatialCountryConflicts,
		},
		{
			ID: "K3", Related: []model.Kind{model.KindReturn, model.KindSalesOrder},
			Category: CategoryCrossDataset, Metric: MetricSamples,
			Description: "returns dated before their sales order",
			eval:        returnsBeforeOrder,
		},
		{
			ID: "K4", Related: []model.Kind{model.KindReturn, model.KindSalesOrder},
			Category: CategoryCrossDataset, Metric: MetricSamples,
			Description: "return amount exceeds the sales order total",
			eval:        returnsExceedingOrder,
		},
		{
			ID: "K5", Related: []model.Kind{model.KindSalesOrder, model.KindSpatial},
			Category: CategoryCrossDataset, Metric: MetricGroups,
			Description: "customers with sales but no customer location",
			eval:        customersWithoutLocation,
		},
	}
}

func productLineConflicts(ec *evalContext) (Result, error) {
	products, err := ec.batch(model.KindProduct)
	if err != nil {
		return Result{}, err
	}
	specs, err := ec.batch(model.KindProductSpec)
	if err != nil {
		return Result{}, err
	}

	lines := ec.codes.ProductLine
	specByID := specs.Index(ec.col(model.KindProductSpec, "product_id"))
	idField, lineField := ec.col(model.KindProduct, "product_id"), ec.col(model.KindProduct, "product_line")
	specLine := ec.col(model.KindProductSpec, "product_line")

	var res Result
	for _, row := range products.Rows {
		spec, ok := specByID[model.KeyString(row[idField])]
		if !ok || row.IsBlank(lineField) || spec.IsBlank(specLine) {
			continue
		}
		crm, _ := lines.Map(model.KeyString(row[lineField]))
		erp, _ := lines.Map(model.KeyString(spec[specLine]))
		if crm != erp {
			res.Count++
			res.Samples = ec.sample(res.Samples, model.Record{
				"product_id":       row[idField],
				"crm_product_line": row[lineField],
				"erp_product_line": spec[specLine],
			})
		}
	}
	return res, nil
}

func spatialCountryConflicts(ec *evalContext) (Result, error) {
	spatial, err := ec.batch(model.KindSpatial)
	if err != nil {
		return Result{}, err
	}
	territory, err := ec.batch(model.KindTerritory)
	if err != nil {
		return Result{}, err
	}

	countries := ec.codes.Country
	byCity := territory.Index(ec.col(model.KindTerritory, "city"))
	city, country := ec.col(model.KindSpatial, "city"), ec.col(model.KindSpatial, "country")
	territoryCountry := ec.col(model.KindTerritory, "country")

	var res Result
	for _, row := range spatial.Rows {
		t, ok := byCity[model.KeyString(row[city])]
		if !ok {
			continue
		}
		got, _ := countries.Map(model.KeyString(row[country]))
		want, _ := countries.Map(model.KeyString(t[territoryCountry]))
		if got != want {
			res.Count++
			res.Samples = ec.sample(res.Samples, model.Record{
				"customer_id":       row[ec.col(model.KindSpatial, "customer_id")],
				"city":              row[city],
				"country":           row[country],
				"territory_country": t[territoryCountry],
			})
		}
	}
	return res, nil
}

// returnJoin pairs each return with the first sales order carrying its order number
func returnJoin(ec *evalContext, fn func(ret, order model.Record) (bool, error)) (Result, error) {
	returns, err := ec.batch(model.KindReturn)
	if err != nil {
		return Result{}, err
	}
	sales, err := ec.batch(model.KindSalesOrder)
	if err != nil {
		return Result{}, err
	}

	orders := sales.Index(ec.col(model.KindSalesOrder, "order_number"))
	orderField := ec.col(model.KindReturn, "order_number")

	var res Result
	for _, ret := range returns.Rows {
		order, ok := orders[model.KeyString(ret[orderField])]
		if !ok {
			continue
		}
		bad, err := fn(ret, order)
		if err != nil {
			return Result{}, err
		}
		if bad {
			res.Count++
			res.Samples = ec.sample(res.Samples, ret)
		}
	}
	return res, nil
}

func returnsBeforeOrder(ec *evalContext) (Result, error) {
	returnDate, orderDate := ec.col(model.KindReturn, "return_date"), ec.col(model.KindSalesOrder, "order_date")
	return returnJoin(ec, func(ret, order model.Record) (bool, error) {
		r, rok, err := date(ret[returnDate], "return_date")
		if err != nil {
			return false, err
		}
		o, ook, err := date(order[orderDate], "order_date")
		if err != nil {
			return false, err
		}
		return rok && ook && r.Before(o), nil
	})
}

func returnsExceedingOrder(ec *evalContext) (Result, error) {
	amount, total := ec.col(model.KindReturn, "return_amount"), ec.col(model.KindSalesOrder, "sales_amount")
	return returnJoin(ec, func(ret, order model.Record) (bool, error) {
		a, aok, err := number(ret[amount], "return_amount")
		if err != nil {
			return false, err
		}
		t, tok, err := number(order[total], "sales_amount")
		if err != nil {
			return false, err
		}
		return aok && tok && math.Abs(a) > t, nil
	})
}

func customersWithoutLocation(ec *evalContext) (Result, error) {
	sales, err := ec.batch(model.KindSalesOrder)
	if err != nil {
		return Result{}, err
	}
	spatial, err := ec.batch(model.KindSpatial)
	if err != nil {
		return Result{}, err
	}

	located := spatial.Index(ec.col(model.KindSpatial, "customer_id"))
	customer := ec.col(model.KindSalesOrder, "customer_id")
	groups := newGroupCounter()
	for _, row := range sales.Rows {
		id := model.KeyString(row[customer])
		if id == "" {
			continue
		}
		if _, ok := located[id]; !ok {
			groups.add(id)
		}
	}
	return Result{Groups: groups.byValue(nil)}, nil
}
