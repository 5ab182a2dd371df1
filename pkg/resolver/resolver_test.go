package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

func territoryBatch(rows ...model.Record) *model.Batch {
	return &model.Batch{Dataset: model.KindTerritory, Stage: model.StageClean, Rows: rows}
}

func TestTerritoryResolver(t *testing.T) {
	r, err := NewTerritoryResolver(territoryBatch(
		model.Record{"city": "Sydney", "country": "Australia", "continent": "Oceania"},
		model.Record{"city": " Berlin ", "country": "Germany", "continent": "Europe"},
		model.Record{"city": "Sydney", "country": "Canada", "continent": "North America"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	tests := []struct {
		name  string
		city  string
		want  Territory
		found bool
	}{
		{name: "exact", city: "Sydney", want: Territory{Country: "Australia", Continent: "Oceania"}, found: true},
		{name: "trimmed input", city: "  Berlin", want: Territory{Country: "Germany", Continent: "Europe"}, found: true},
		{name: "case sensitive", city: "sydney", found: false},
		{name: "absent", city: "Paris", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.city)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerritoryResolverUnavailable(t *testing.T) {
	_, err := NewTerritoryResolver(nil)
	require.ErrorIs(t, err, ErrResolverUnavailable)

	_, err = NewTerritoryResolver(territoryBatch())
	require.ErrorIs(t, err, ErrResolverUnavailable)

	var missing *TerritoryResolver
	_, ok := missing.Resolve("Sydney")
	assert.False(t, ok)
}

func TestCategoryNormalizer(t *testing.T) {
	categoryMap := &model.Batch{Dataset: model.KindCategoryMap, Rows: []model.Record{
		{"category_id": "AC_HE", "category": "Accessories", "subcategory": "Helmet"},
		{"category_id": "CO_PD", "category": "Components", "subcategory": "Pedals"},
	}}
	n, err := NewCategoryNormalizer(DefaultCategorySubstitutions(), categoryMap, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "Tire", n.Normalize("Tires"))
	assert.Equal(t, "Tire", n.Normalize("  Tires "))
	assert.Equal(t, "Pedals", n.Normalize("Pedals"))
	assert.Equal(t, "tires", n.Normalize("tires"), "lookup is case-sensitive")

	assert.True(t, n.Known("Helmet"))
	assert.True(t, n.Known(n.Normalize("Helmets")))
	assert.False(t, n.Known("Tire"))
}

func TestCategoryNormalizerRequiresTable(t *testing.T) {
	_, err := NewCategoryNormalizer(nil, nil, zaptest.NewLogger(t))
	require.ErrorIs(t, err, ErrResolverUnavailable)
}

func TestCodeMaps(t *testing.T) {
	d := DefaultDictionaries()

	tests := []struct {
		name    string
		m       *CodeMap
		in      string
		want    string
		matched bool
	}{
		{name: "marital abbreviation", m: d.MaritalStatus, in: "D", want: "Divorced", matched: true},
		{name: "marital lower case", m: d.MaritalStatus, in: " s ", want: "Single", matched: true},
		{name: "marital canonical", m: d.MaritalStatus, in: "married", want: "Married", matched: true},
		{name: "gender unknown token", m: d.Gender, in: "n/a", want: Unknown},
		{name: "gender blank", m: d.Gender, in: "   ", want: Unknown},
		{name: "product line", m: d.ProductLine, in: "S", want: "Other Sales", matched: true},
		{name: "maintenance yes", m: d.Maintenance, in: "Y", want: "Yes", matched: true},
		{name: "maintenance numeric no", m: d.Maintenance, in: "0", want: "No", matched: true},
		{name: "maintenance garbage", m: d.Maintenance, in: "maybe", want: Unknown},
		{name: "store web", m: d.StoreType, in: "web", want: "Online", matched: true},
		{name: "country code", m: d.Country, in: "USA", want: "United States", matched: true},
		{name: "country pass through", m: d.Country, in: " Japan ", want: "Japan"},
		{name: "country blank", m: d.Country, in: "", want: Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := tt.m.Map(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestVocabulary(t *testing.T) {
	d := DefaultDictionaries()

	assert.ElementsMatch(t, []string{"Female", "Male", Unknown}, d.Gender.Vocabulary())
	assert.Nil(t, d.Country.Vocabulary())
	assert.True(t, d.MaritalStatus.Contains("Widowed"))
	assert.True(t, d.MaritalStatus.Contains(Unknown))
	assert.False(t, d.MaritalStatus.Contains("W"))

	m, ok := d.ForField(model.KindProductSpec, "product_line")
	require.True(t, ok)
	assert.Same(t, d.ProductLine, m)

	_, ok = d.ForField(model.KindReturn, "return_reason")
	assert.False(t, ok)

	for kind, fields := range d.ClosedFields() {
		for _, f := range fields {
			m, ok := d.ForField(kind, f)
			require.True(t, ok, "%s.%s", kind, f)
			assert.Equal(t, PinUnknown, m.Policy)
		}
	}
}
