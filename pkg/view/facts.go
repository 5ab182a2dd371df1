package view

import (
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

var factSalesColumns = []string{
	"order_number", "product_id", "product_name", "customer_id", "customer_name", "store_id",
	"store_name", "order_date", "order_year", "order_month", "ship_date", "due_date", "days_to_ship",
	"delivery_status", "quantity", "price", "sales_amount",
}

var factReturnsColumns = []string{
	"return_id", "order_number", "product_id", "customer_id", "store_id", "order_date", "return_date",
	"return_year", "return_month", "days_since_order", "return_amount", "return_reason",
}

// DaysBetween returns the whole days from one date to another; false when
// either is missing
func DaysBetween(from, to interface{}) (int64, bool) {
	f, ok, err := converter.ToDate(from)
	if !ok || err != nil {
		return 0, false
	}
	t, ok, err := converter.ToDate(to)
	if !ok || err != nil {
		return 0, false
	}
	return int64(t.Sub(f) / (24 * time.Hour)), true
}

// DeliveryStatus classifies an order by comparing its ship date to its due date
func DeliveryStatus(ship, due interface{}) string {
	late, ok := DaysBetween(due, ship)
	if !ok {
		return DeliveryUnknown
	}
	if late > 0 {
		return DeliveryLate
	}
	return DeliveryOnTime
}

// yearMonth splits a date into its calendar year and month; nils when missing
func yearMonth(v interface{}) (interface{}, interface{}) {
	d, ok, err := converter.ToDate(v)
	if !ok || err != nil {
		return nil, nil
	}
	return int64(d.Year()), int64(d.Month())
}

func optional(n int64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return n
}

func buildFactSales(snap *snapshot) (*Table, error) {
	orders, err := snap.primary(model.KindSalesOrder)
	if err != nil {
		return nil, err
	}
	products, err := snap.lookup(model.KindProduct, "product_id")
	if err != nil {
		return nil, err
	}
	customers, err := snap.lookup(model.KindCustomer, "customer_id")
	if err != nil {
		return nil, err
	}
	stores, err := snap.lookup(model.KindStore, "store_id")
	if err != nil {
		return nil, err
	}

	rows := make([]model.Record, 0, orders.Len())
	for _, o := range orders.Rows {
		year, month := yearMonth(o["order_date"])
		customerName := resolver.Unknown
		if c := customers[model.KeyString(o["customer_id"])]; c != nil {
			customerName = fullName(c)
		}
		rows = append(rows, model.Record{
			"order_number":    o["order_number"],
			"product_id":      o["product_id"],
			"product_name":    text(products[model.KeyString(o["product_id"])], "product_name"),
			"customer_id":     o["customer_id"],
			"customer_name":   customerName,
			"store_id":        o["store_id"],
			"store_name":      text(stores[model.KeyString(o["store_id"])], "store_name"),
			"order_date":      o["order_date"],
			"order_year":      year,
			"order_month":     month,
			"ship_date":       o["ship_date"],
			"due_date":        o["due_date"],
			"days_to_ship":    optional(DaysBetween(o["order_date"], o["ship_date"])),
			"delivery_status": DeliveryStatus(o["ship_date"], o["due_date"]),
			"quantity":        o["quantity"],
			"price":           o["price"],
			"sales_amount":    o["sales_amount"],
		})
	}
	return &Table{Columns: factSalesColumns, Rows: rows}, nil
}

func buildFactReturns(snap *snapshot) (*Table, error) {
	returns, err := snap.primary(model.KindReturn)
	if err != nil {
		return nil, err
	}
	orders, err := snap.lookup(model.KindSalesOrder, "order_number")
	if err != nil {
		return nil, err
	}

	rows := make([]model.Record, 0, returns.Len())
	for _, r := range returns.Rows {
		order := orders[model.KeyString(r["order_number"])]
		year, month := yearMonth(r["return_date"])
		rows = append(rows, model.Record{
			"return_id":        r["return_id"],
			"order_number":     r["order_number"],
			"product_id":       text(order, "product_id"),
			"customer_id":      value(order, "customer_id"),
			"store_id":         text(order, "store_id"),
			"order_date":       value(order, "order_date"),
			"return_date":      r["return_date"],
			"return_year":      year,
			"return_month":     month,
			"days_since_order": optional(DaysBetween(value(order, "order_date"), r["return_date"])),
			"return_amount":    r["return_amount"],
			"return_reason":    text(r, "return_reason"),
		})
	}
	return &Table{Columns: factReturnsColumns, Rows: rows}, nil
}
