package quality

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

type fakeReader map[model.Kind][]model.Record

func (f fakeReader) Read(_ context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error) {
	rows, ok := f[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, model.ErrDatasetUnavailable)
	}
	return &model.Batch{Dataset: kind, Stage: stage, Rows: rows}, nil
}

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Now = func() time.Time { return testNow }
	opts.SampleLimit = 2
	e, err := NewEngine(zaptest.NewLogger(t), opts)
	require.NoError(t, err)
	return e
}

func rawFixture() fakeReader {
	return fakeReader{
		model.KindCustomer: {
			{"customer_id": int64(1), "first_name": " Ann", "last_name": "Lee", "gender": "F", "marital_status": "M", "birth_date": day(1985, 1, 1)},
			{"customer_id": int64(1), "first_name": "Ann", "last_name": "", "gender": "F", "marital_status": "S", "birth_date": day(1890, 1, 1)},
			{"customer_id": nil, "first_name": "Bob", "last_name": "Ray", "gender": "M", "marital_status": "M"},
			{"customer_id": int64(2), "first_name": "Cy", "last_name": "Do", "gender": nil, "marital_status": "M", "birth_date": day(2030, 1, 1)},
		},
		model.KindProduct: {
			{"product_id": "P1", "product_line": "M", "cost": float64(0), "start_date": day(2020, 5, 1), "end_date": day(2020, 4, 1)},
			{"product_id": "P2", "product_line": "R", "cost": float64(5)},
		},
		model.KindSalesOrder: {
			{"order_number": "SO1", "product_id": "P1", "customer_id": int64(1), "store_id": "S1",
				"order_date": day(2021, 1, 10), "shiping_date": day(2021, 1, 5), "due_date": day(2021, 1, 20),
				"quantity": int64(2), "price": float64(10), "sales_amount": float64(20)},
			{"order_number": "X2", "product_id": "P9", "customer_id": int64(7), "store_id": "",
				"order_date": day(2019, 1, 10), "quantity": int64(2), "price": float64(10), "sales_amount": float64(25)},
			{"order_number": "SO3", "product_id": "P2", "customer_id": int64(7), "store_id": "S9",
				"order_date": day(2026, 1, 1), "due_date": day(2025, 12, 1), "quantity": int64(0), "price": float64(10)},
		},
		model.KindCategoryMap: {
			{"category_id": "AC_TI", "category": "Accessories", "subcategory": "Tire", "maintenance_required": "Yes"},
			{"category_id": "CO_PE", "category": "Components", "subcategory": "Pedals", "maintenance_required": "y"},
		},
		model.KindProductSpec: {
			{"product_id": "P1", "subcategory": "Tires", "product_line": "Mountain"},
			{"product_id": "P3", "subcategory": "Pedals", "product_line": "R"},
			{"product_id": "P4", "subcategory": "Spokes", "product_line": "T"},
		},
		model.KindStore: {
			{"store_id": "S1", "store_type": "R"},
		},
		model.KindReturn: {
			{"return_id": int64(1), "order_number": "SO1", "return_date": day(2021, 1, 1), "return_amount": float64(-30)},
			{"return_id": int64(2), "order_number": "SO404", "return_date": day(2030, 1, 1), "return_amount": float64(5)},
		},
		model.KindSpatial: {
			{"customer_id": int64(1), "city": "Sydney", "country": "Germany"},
			{"customer_id": int64(2), "city": "Berlin", "country": "DE"},
			{"customer_id": int64(3), "city": "Atlantis", "country": "Nowhere"},
		},
		model.KindTerritory: {
			{"city": "Sydney", "country": "Australia", "continent": "Oceania"},
			{"city": "Berlin", "country": "Germany", "continent": " "},
		},
	}
}

func resultsByID(r *Report) map[string]Result {
	out := make(map[string]Result, len(r.Results))
	for _, res := range r.Results {
		out[res.CheckID] = res
	}
	return out
}

func TestCatalogIdentifiers(t *testing.T) {
	idPattern := regexp.MustCompile(`^([A-I])([1-6])[a-z]$|^K\d+$`)
	seen := map[string]bool{}

	for _, c := range Catalog() {
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true

		m := idPattern.FindStringSubmatch(c.ID)
		require.NotNil(t, m, "malformed id %s", c.ID)
		if c.Dataset == "" {
			assert.Equal(t, CategoryCrossDataset, c.Category, c.ID)
			assert.GreaterOrEqual(t, len(c.Related), 2, c.ID)
			continue
		}
		assert.Equal(t, model.MustLookup(c.Dataset).Letter, m[1], c.ID)
		assert.Equal(t, fmt.Sprint(c.Category.Number()), m[2], c.ID)
		assert.NotEmpty(t, c.Description, c.ID)
	}

	for _, kind := range model.AllKinds() {
		letter := model.MustLookup(kind).Letter
		assert.True(t, seen[letter+"1a"], "missing completeness check for %s", kind)
		assert.True(t, seen[letter+"2a"], "missing uniqueness check for %s", kind)
	}
	for _, id := range []string{"K1", "K2", "K3", "K4", "K5"} {
		assert.True(t, seen[id], id)
	}
}

func TestRunRawChecks(t *testing.T) {
	e := newTestEngine(t)

	report, err := e.Run(context.Background(), rawFixture(), model.StageRaw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, len(Catalog()), len(report.Results))
	assert.Zero(t, report.ErrorCount())
	assert.Equal(t, testNow, report.StartedAt)

	results := resultsByID(report)

	tests := []struct {
		id    string
		count int
	}{
		{"A1a", 1},
		{"A1b", 1},
		{"C1b", 1},
		{"A2a", 1},
		{"B3b", 1},
		{"C3a", 1},
		{"C3b", 1},
		{"G3a", 1},
		{"B4a", 1},
		{"C4a", 1},
		{"C4b", 1},
		{"C4c", 1},
		{"C5a", 1},
		{"C5b", 2},
		{"C5c", 1},
		{"G5a", 1},
		{"H5a", 1},
		{"E5a", 1},
		{"B5a", 1},
		{"A6a", 2},
		{"C6a", 1},
		{"C6b", 1},
		{"G6a", 1},
		{"K1", 0},
		{"K2", 1},
		{"K3", 1},
		{"K4", 1},
		{"K5", 1},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			res, ok := results[tt.id]
			require.True(t, ok)
			assert.Empty(t, res.Error)
			assert.Equal(t, tt.count, res.Count)
		})
	}

	assert.Equal(t, []GroupCount{{Value: "1", Count: 2}}, results["A2a"].Groups)
	assert.Equal(t, []GroupCount{{Value: "7", Count: 2}}, results["C5b"].Groups)
	assert.Equal(t, []GroupCount{{Value: "Spokes", Count: 1}}, results["E5a"].Groups)
	assert.Equal(t, []GroupCount{{Value: "7", Count: 2}}, results["K5"].Groups)
	assert.Equal(t, "X2", results["C3a"].Samples[0]["order_number"])
}

func TestProbesListFullDistribution(t *testing.T) {
	e := newTestEngine(t)

	report, err := e.Run(context.Background(), rawFixture(), model.StageRaw, []model.Kind{model.KindCustomer, model.KindTerritory})
	require.NoError(t, err)
	results := resultsByID(report)

	gender := results["A3a"]
	assert.True(t, gender.Probe)
	assert.False(t, gender.HasIssues())
	assert.Equal(t, MetricGroups, gender.Metric)
	assert.Equal(t, []GroupCount{
		{Value: "F", Count: 2},
		{Value: "<null>", Count: 1},
		{Value: "M", Count: 1},
	}, gender.Groups)
	assert.Equal(t, 3, gender.Count)

	assert.Equal(t, []GroupCount{
		{Value: "<blank>", Count: 1},
		{Value: "Oceania", Count: 1},
	}, results["I3a"].Groups)

	untrimmed := results["A3c"]
	assert.Equal(t, 1, untrimmed.Count)
	require.Len(t, untrimmed.Samples, 1)
	assert.Equal(t, " Ann", untrimmed.Samples[0]["first_name"])
}

func TestScopeSelectsChecks(t *testing.T) {
	e := newTestEngine(t)

	report, err := e.Run(context.Background(), rawFixture(), model.StageRaw, []model.Kind{model.KindReturn})
	require.NoError(t, err)

	for _, res := range report.Results {
		assert.Equal(t, string(model.KindReturn), res.Dataset, res.CheckID)
	}
	ids := resultsByID(report)
	assert.Contains(t, ids, "G5a", "referenced datasets outside scope are still read")
	assert.NotContains(t, ids, "K3")
}

func TestMissingDatasetRecordsError(t *testing.T) {
	e := newTestEngine(t)
	reader := rawFixture()
	delete(reader, model.KindTerritory)

	report, err := e.Run(context.Background(), reader, model.StageRaw, nil)
	require.NoError(t, err)
	results := resultsByID(report)

	assert.Contains(t, results["I1a"].Error, "dataset unavailable")
	assert.Contains(t, results["H5a"].Error, "dataset unavailable")
	assert.Contains(t, results["K2"].Error, "dataset unavailable")
	assert.Empty(t, results["A1a"].Error)
	assert.Equal(t, 5, report.ErrorCount(), "I1a, I2a, I3a, H5a and K2 read territory")
	assert.False(t, results["I1a"].HasIssues())
}

func TestCleanStageUsesCleanColumnNames(t *testing.T) {
	e := newTestEngine(t)
	reader := fakeReader{
		model.KindSalesOrder: {
			{"order_number": "SO1", "order_date": day(2021, 1, 10), "ship_date": day(2021, 1, 5)},
		},
	}

	res, err := e.RunCheck(context.Background(), reader, model.StageClean, "C4b")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = e.RunCheck(context.Background(), reader, model.StageRaw, "C4b")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count, "raw stage reads shiping_date")

	_, err = e.RunCheck(context.Background(), reader, model.StageRaw, "Z9z")
	require.Error(t, err)
}

func TestSampleLimit(t *testing.T) {
	e := newTestEngine(t)
	rows := make([]model.Record, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, model.Record{"order_number": fmt.Sprintf("BAD%d", i)})
	}

	res, err := e.RunCheck(context.Background(), fakeReader{model.KindSalesOrder: rows}, model.StageRaw, "C3a")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	assert.Len(t, res.Samples, 2)
}

func TestCancelledRun(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, rawFixture(), model.StageRaw, nil)
	require.ErrorIs(t, err, context.Canceled)
}
