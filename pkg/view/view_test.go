package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, w *store.Memory, kind model.Kind, rows ...model.Record) {
	t.Helper()
	require.NoError(t, w.Replace(context.Background(), &model.Batch{
		Dataset: kind,
		Stage:   model.StageClean,
		Rows:    rows,
	}))
}

func newBuilder(t *testing.T, w *store.Memory) *Builder {
	t.Helper()
	b, err := NewBuilder(w, zaptest.NewLogger(t), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return b
}

func TestAge(t *testing.T) {
	tests := []struct {
		name    string
		birth   interface{}
		wantAge int
		wantOK  bool
		bracket string
	}{
		{"birthday passed", day(1990, 3, 10), 35, true, "35-44"},
		{"birthday today", day(2000, 6, 1), 25, true, "25-34"},
		{"birthday tomorrow", day(2000, 6, 2), 24, true, "Under 25"},
		{"senior", day(1950, 1, 1), 75, true, "65+"},
		{"missing", nil, 0, false, resolver.Unknown},
		{"future", day(2030, 1, 1), 0, false, resolver.Unknown},
		{"string date", "1980-12-31", 44, true, "35-44"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, ok := Age(tt.birth, fixedNow)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAge, age)
			assert.Equal(t, tt.bracket, AgeBracket(age, ok))
		})
	}
}

func TestDeliveryStatus(t *testing.T) {
	tests := []struct {
		name string
		ship interface{}
		due  interface{}
		want string
	}{
		{"early", day(2024, 1, 5), day(2024, 1, 10), DeliveryOnTime},
		{"on due date", day(2024, 1, 10), day(2024, 1, 10), DeliveryOnTime},
		{"late", day(2024, 1, 11), day(2024, 1, 10), DeliveryLate},
		{"not shipped", nil, day(2024, 1, 10), DeliveryUnknown},
		{"no due date", day(2024, 1, 11), nil, DeliveryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeliveryStatus(tt.ship, tt.due))
		})
	}
}

func TestParseName(t *testing.T) {
	n, err := ParseName(" DIM_Customer ")
	require.NoError(t, err)
	assert.Equal(t, DimCustomer, n)

	_, err = ParseName("dim_nothing")
	assert.Error(t, err)
}

func TestDimCustomer(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindCustomer,
		model.Record{"customer_id": int64(1), "first_name": "Ana", "last_name": "Silva", "gender": "Female",
			"marital_status": "Married", "birth_date": day(1990, 3, 10)},
		model.Record{"customer_id": int64(2), "first_name": "Bo", "gender": "Male", "marital_status": "Single"},
		model.Record{"customer_id": int64(3), "first_name": "Cy", "birth_date": day(1960, 7, 1)},
	)
	seed(t, w, model.KindSpatial,
		model.Record{"customer_id": int64(1), "city": "Paris", "country": "France"},
		model.Record{"customer_id": int64(2), "city": "Atlantis", "country": "United States"},
	)
	seed(t, w, model.KindTerritory,
		model.Record{"city": "Paris", "country": "France", "continent": "Europe"},
	)

	table, err := newBuilder(t, w).Build(context.Background(), DimCustomer)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, DimCustomer, table.Name)
	assert.Equal(t, fixedNow, table.BuiltAt)
	assert.Contains(t, table.Columns, "age_bracket")

	ana := table.Rows[0]
	assert.Equal(t, "Ana Silva", ana["full_name"])
	assert.Equal(t, int64(35), ana["age"])
	assert.Equal(t, "35-44", ana["age_bracket"])
	assert.Equal(t, "Paris", ana["city"])
	assert.Equal(t, "France", ana["country"])
	assert.Equal(t, "Europe", ana["continent"])

	bo := table.Rows[1]
	assert.Nil(t, bo["age"])
	assert.Equal(t, resolver.Unknown, bo["age_bracket"])
	assert.Equal(t, "United States", bo["country"])
	assert.Equal(t, resolver.Unknown, bo["continent"])

	cy := table.Rows[2]
	assert.Equal(t, int64(64), cy["age"])
	assert.Equal(t, "55-64", cy["age_bracket"])
	assert.Equal(t, resolver.Unknown, cy["city"])
	assert.Equal(t, resolver.Unknown, cy["country"])
	assert.Equal(t, resolver.Unknown, cy["gender"])
}

func TestDimCustomerWithoutDimensions(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindCustomer, model.Record{"customer_id": int64(1), "first_name": "Ana"})

	table, err := newBuilder(t, w).Build(context.Background(), DimCustomer)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, resolver.Unknown, table.Rows[0]["continent"])
}

func TestDimProduct(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindProduct,
		model.Record{"product_id": "BK-1", "product_name": "Road Bike", "product_line": "Road",
			"start_date": day(2020, 1, 1)},
		model.Record{"product_id": "BK-2", "product_name": "Old Bike", "start_date": day(2018, 1, 1),
			"end_date": day(2019, 12, 31)},
		model.Record{"product_id": "HL-1", "product_name": "Helmet"},
	)
	seed(t, w, model.KindProductSpec,
		model.Record{"product_id": "BK-1", "subcategory": "Road Bike", "color": "Red", "weight": 8.5},
		model.Record{"product_id": "BK-2", "subcategory": "Tandem", "color": "Blue"},
	)
	seed(t, w, model.KindCategoryMap,
		model.Record{"category_id": "BI_RB", "category": "Bikes", "subcategory": "Road Bike",
			"maintenance_required": "Yes"},
	)

	table, err := newBuilder(t, w).Build(context.Background(), DimProduct)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	road := table.Rows[0]
	assert.Equal(t, true, road["is_current"])
	assert.Equal(t, "Bikes", road["category"])
	assert.Equal(t, "BI_RB", road["category_id"])
	assert.Equal(t, "Yes", road["maintenance_required"])
	assert.Equal(t, 8.5, road["weight"])

	old := table.Rows[1]
	assert.Equal(t, false, old["is_current"])
	assert.Equal(t, "Tandem", old["subcategory"])
	assert.Equal(t, resolver.Unknown, old["category"])

	helmet := table.Rows[2]
	assert.Equal(t, resolver.Unknown, helmet["subcategory"])
	assert.Equal(t, resolver.Unknown, helmet["color"])
	assert.Equal(t, resolver.Unknown, helmet["product_line"])
	assert.Nil(t, helmet["weight"])
}

func TestFactSales(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindSalesOrder,
		model.Record{"order_number": "SO1", "product_id": "BK-1", "customer_id": int64(1), "store_id": "S1",
			"order_date": day(2024, 1, 1), "ship_date": day(2024, 1, 8), "due_date": day(2024, 1, 13),
			"quantity": int64(2), "price": 10.0, "sales_amount": 20.0},
		model.Record{"order_number": "SO2", "product_id": "ZZ", "customer_id": int64(9), "store_id": "S9",
			"order_date": day(2024, 2, 1), "ship_date": day(2024, 2, 20), "due_date": day(2024, 2, 10)},
		model.Record{"order_number": "SO3", "product_id": "BK-1", "customer_id": int64(1)},
	)
	seed(t, w, model.KindProduct, model.Record{"product_id": "BK-1", "product_name": "Road Bike"})
	seed(t, w, model.KindCustomer, model.Record{"customer_id": int64(1), "first_name": "Ana", "last_name": "Silva"})
	seed(t, w, model.KindStore, model.Record{"store_id": "S1", "store_name": "Central"})

	table, err := newBuilder(t, w).Build(context.Background(), FactSales)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.Rows[0]
	assert.Equal(t, "Road Bike", first["product_name"])
	assert.Equal(t, "Ana Silva", first["customer_name"])
	assert.Equal(t, "Central", first["store_name"])
	assert.Equal(t, int64(2024), first["order_year"])
	assert.Equal(t, int64(1), first["order_month"])
	assert.Equal(t, int64(7), first["days_to_ship"])
	assert.Equal(t, DeliveryOnTime, first["delivery_status"])

	second := table.Rows[1]
	assert.Equal(t, resolver.Unknown, second["product_name"])
	assert.Equal(t, resolver.Unknown, second["customer_name"])
	assert.Equal(t, resolver.Unknown, second["store_name"])
	assert.Equal(t, DeliveryLate, second["delivery_status"])

	third := table.Rows[2]
	assert.Nil(t, third["order_year"])
	assert.Nil(t, third["days_to_ship"])
	assert.Equal(t, DeliveryUnknown, third["delivery_status"])
}

func TestFactReturns(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindReturn,
		model.Record{"return_id": int64(1), "order_number": "SO1", "return_date": day(2024, 1, 20),
			"return_amount": 20.0, "return_reason": "Damaged"},
		model.Record{"return_id": int64(2), "order_number": "SO404", "return_date": day(2024, 3, 2)},
	)
	seed(t, w, model.KindSalesOrder,
		model.Record{"order_number": "SO1", "product_id": "BK-1", "customer_id": int64(1), "store_id": "S1",
			"order_date": day(2024, 1, 1)},
	)

	table, err := newBuilder(t, w).Build(context.Background(), FactReturns)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	matched := table.Rows[0]
	assert.Equal(t, "BK-1", matched["product_id"])
	assert.Equal(t, int64(1), matched["customer_id"])
	assert.Equal(t, int64(2024), matched["return_year"])
	assert.Equal(t, int64(1), matched["return_month"])
	assert.Equal(t, int64(19), matched["days_since_order"])

	orphan := table.Rows[1]
	assert.Equal(t, resolver.Unknown, orphan["product_id"])
	assert.Nil(t, orphan["customer_id"])
	assert.Nil(t, orphan["days_since_order"])
	assert.Equal(t, int64(3), orphan["return_month"])
	assert.Equal(t, resolver.Unknown, orphan["return_reason"])
}

func TestBuildRequiresPrimaryDataset(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	_, err := newBuilder(t, w).Build(context.Background(), DimStore)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDatasetUnavailable))
}

func TestBuildAll(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindCustomer, model.Record{"customer_id": int64(1)})
	seed(t, w, model.KindProduct, model.Record{"product_id": "BK-1"})
	seed(t, w, model.KindStore, model.Record{"store_id": "S1", "store_name": "Central", "city": "Lyon"})
	seed(t, w, model.KindSalesOrder, model.Record{"order_number": "SO1"})
	seed(t, w, model.KindReturn, model.Record{"return_id": int64(1), "order_number": "SO1"})

	tables, err := newBuilder(t, w).BuildAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, len(Names()))
	for _, name := range Names() {
		assert.Equal(t, 1, tables[name].Len(), string(name))
	}
	assert.Equal(t, "Lyon", tables[DimStore].Rows[0]["city"])
	assert.Equal(t, resolver.Unknown, tables[DimStore].Rows[0]["store_type"])

	w2 := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w2, model.KindCustomer, model.Record{"customer_id": int64(1)})
	_, err = newBuilder(t, w2).BuildAll(context.Background())
	assert.True(t, errors.Is(err, model.ErrDatasetUnavailable))
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(nil, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewBuilder(store.NewMemory(zaptest.NewLogger(t)), nil)
	assert.Error(t, err)

	_, err = NewBuilder(store.NewMemory(zaptest.NewLogger(t)), zaptest.NewLogger(t),
		WithCategorySubstitutions(map[string]string{}))
	assert.True(t, errors.Is(err, resolver.ErrResolverUnavailable))
}

func TestDimProductNormalizesSubcategory(t *testing.T) {
	w := store.NewMemory(zaptest.NewLogger(t))
	seed(t, w, model.KindProduct,
		model.Record{"product_id": "TI-1", "product_name": "Road Tire"},
		model.Record{"product_id": "PD-1", "product_name": "Pedal"},
	)
	seed(t, w, model.KindProductSpec,
		model.Record{"product_id": "TI-1", "subcategory": "Tires"},
		model.Record{"product_id": "PD-1", "subcategory": "Pedals"},
	)
	seed(t, w, model.KindCategoryMap,
		model.Record{"category_id": "AC_TT", "category": "Accessories", "subcategory": "Tire"},
		model.Record{"category_id": "CO_PD", "category": "Components", "subcategory": "Pedal"},
	)

	table, err := newBuilder(t, w).Build(context.Background(), DimProduct)
	require.NoError(t, err)
	assert.Equal(t, "Accessories", table.Rows[0]["category"])
	assert.Equal(t, resolver.Unknown, table.Rows[1]["category"])

	custom, err := NewBuilder(w, zaptest.NewLogger(t), WithCategorySubstitutions(map[string]string{"Pedals": "Pedal"}))
	require.NoError(t, err)
	table, err = custom.Build(context.Background(), DimProduct)
	require.NoError(t, err)
	assert.Equal(t, resolver.Unknown, table.Rows[0]["category"])
	assert.Equal(t, "Components", table.Rows[1]["category"])
}
