package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

func TestParseRaw(t *testing.T) {
	c := NewTypeConverter(zaptest.NewLogger(t))

	tests := []struct {
		name    string
		cell    string
		col     model.Column
		want    interface{}
		wantErr bool
	}{
		{name: "text kept verbatim", cell: "  michael ", col: model.Column{Name: "first_name", DataType: model.TypeText}, want: "  michael "},
		{name: "empty text kept", cell: "", col: model.Column{Name: "first_name", DataType: model.TypeText}, want: ""},
		{name: "int", cell: " 42 ", col: model.Column{Name: "return_id", DataType: model.TypeInt}, want: int64(42)},
		{name: "int with zero fraction", cell: "7.0", col: model.Column{Name: "quantity", DataType: model.TypeInt}, want: int64(7)},
		{name: "leading zero int is decimal", cell: "08", col: model.Column{Name: "quantity", DataType: model.TypeInt}, want: int64(8)},
		{name: "blank int is null", cell: "  ", col: model.Column{Name: "quantity", DataType: model.TypeInt}, want: nil},
		{name: "null token", cell: "NULL", col: model.Column{Name: "cost", DataType: model.TypeDecimal}, want: nil},
		{name: "negative decimal", cell: "-267", col: model.Column{Name: "return_amount", DataType: model.TypeDecimal}, want: float64(-267)},
		{name: "iso date", cell: "2021-03-04", col: model.Column{Name: "order_date", DataType: model.TypeDate}, want: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{name: "compact date", cell: "20210304", col: model.Column{Name: "order_date", DataType: model.TypeDate}, want: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{name: "date sentinel", cell: "0", col: model.Column{Name: "order_date", DataType: model.TypeDate}, want: nil},
		{name: "malformed int", cell: "abc", col: model.Column{Name: "quantity", DataType: model.TypeInt}, wantErr: true},
		{name: "fractional int", cell: "1.5", col: model.Column{Name: "quantity", DataType: model.TypeInt}, wantErr: true},
		{name: "malformed date", cell: "31/31/2021", col: model.Column{Name: "order_date", DataType: model.TypeDate}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ParseRaw(tt.cell, tt.col)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.col.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertValue(t *testing.T) {
	c := NewTypeConverter(zaptest.NewLogger(t))

	got, err := c.ConvertValue([]byte("12.5"), model.TypeDecimal, "price")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got)

	got, err = c.ConvertValue(int32(9), model.TypeInt, "customer_id")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)

	got, err = c.ConvertValue("2024-01-02 10:11:12.5+00:00", model.TypeDate, "order_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = c.ConvertValue(nil, model.TypeText, "city")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = c.ConvertValue(true, model.TypeDecimal, "price")
	require.Error(t, err)

	_, err = c.ConvertValue(1, "BLOB", "payload")
	require.Error(t, err)
}

func TestConvertRecord(t *testing.T) {
	c := NewTypeConverter(zaptest.NewLogger(t))
	cols := []model.Column{
		{Name: "customer_id", DataType: model.TypeInt},
		{Name: "city", DataType: model.TypeText},
		{Name: "country", DataType: model.TypeText},
	}

	rec, err := c.ConvertRecord(map[string]interface{}{
		"CUSTOMER_ID": "9",
		"city":        []byte("Sydney"),
		"extra":       "dropped",
	}, cols)
	require.NoError(t, err)

	assert.Equal(t, model.Record{"customer_id": int64(9), "city": "Sydney", "country": nil}, rec)
}

func TestDetectTimeFormat(t *testing.T) {
	assert.Equal(t, "2006-01-02", DetectTimeFormat("2020-01-01"))
	assert.Equal(t, "20060102", DetectTimeFormat("20200101"))
	assert.Equal(t, "", DetectTimeFormat("yesterday"))
}
