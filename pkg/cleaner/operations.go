// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// Cleaning operation and reason names recorded in the audit trail
const (
	OpRowRejected         = "row_rejected"
	OpDuplicateRemoved    = "duplicate_removed"
	OpTrim                = "trim"
	OpProperCase          = "proper_case"
	OpBlankToNull         = "blank_to_null"
	OpCodeMapping         = "code_mapping"
	OpDefaultUnknown      = "default_unknown"
	OpCategoryNormalize   = "category_normalization"
	OpNullInvalid         = "null_invalid"
	OpSignCorrection      = "sign_correction"
	OpRecompute           = "recompute"
	OpTerritoryCorrection = "territory_correction"

	ReasonBlankKey          = "blank_business_key"
	ReasonDuplicateKey      = "duplicate_business_key"
	ReasonWhitespace        = "surrounding_whitespace"
	ReasonPersonName        = "person_name_casing"
	ReasonBlankValue        = "blank_value"
	ReasonKnownVariant      = "known_variant"
	ReasonUnrecognizedCode  = "unrecognized_code"
	ReasonPluralLabel       = "plural_label"
	ReasonNonPositive       = "non_positive_value"
	ReasonNegativeAmount    = "negative_amount"
	ReasonFutureDate        = "future_date"
	ReasonBeforeFloor       = "before_floor"
	ReasonDerivedTotal      = "derived_total"
	ReasonAuthoritativeCity = "authoritative_city"
)

// cleanseRun is the working state of one Cleanse call. Rows carry raw column
// names until the rename stage.
type cleanseRun struct {
	ds        *model.Dataset
	rules     datasetRules
	resolvers resolver.Set
	converter *converter.TypeConverter
	caser     cases.Caser
	now       time.Time
	require   bool
	logger    *zap.Logger

	renamed    bool
	rows       []model.Record
	fallbacks  int
	operations []model.CleaningOperation
}

// field returns the name a clean column carries in the working rows
func (r *cleanseRun) field(name string) string {
	if r.renamed {
		return name
	}
	return r.ds.Field(name, model.StageRaw)
}

func (r *cleanseRun) record(row model.Record, column string, before, after interface{}, op, reason string) {
	r.operations = append(r.operations, model.CleaningOperation{
		Dataset:           r.ds.Kind,
		ColumnName:        column,
		OriginalValue:     before,
		NewValue:          after,
		RowIdentifier:     model.KeyString(row[r.field(r.ds.Key())]),
		CleaningOperation: op,
		CleaningReason:    reason,
		CleanedAt:         r.now,
	})
}

// coerce copies the raw rows into typed working rows, one value per schema column
func (r *cleanseRun) coerce(rows []model.Record) error {
	r.rows = make([]model.Record, 0, len(rows))
	for i, raw := range rows {
		row := make(model.Record, len(r.ds.Metadata.Columns))
		for _, col := range r.ds.Metadata.Columns {
			name := col.NameFor(model.StageRaw)
			v, err := r.converter.ConvertValue(raw[name], col.DataType, name)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			row[name] = v
		}
		r.rows = append(r.rows, row)
	}
	return nil
}

// filterBlankKeys drops rows whose business key is null or blank
func (r *cleanseRun) filterBlankKeys() int {
	key := r.field(r.ds.Key())
	kept := r.rows[:0]
	rejected := 0
	for _, row := range r.rows {
		if row.IsBlank(key) {
			rejected++
			r.record(row, r.ds.Key(), row[key], nil, OpRowRejected, ReasonBlankKey)
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return rejected
}

// deduplicate keeps one row per business key. With the latest strategy a row
// replaces the kept one only when its recency value is strictly later; equal or
// null recency keeps the earlier row. Output follows first appearance of each key.
func (r *cleanseRun) deduplicate(policy model.DedupPolicy) (int, error) {
	key := r.field(r.ds.Key())
	recency := ""
	if policy.Strategy == model.DedupLatest {
		recency = r.field(policy.Field)
	}

	position := make(map[string]int, len(r.rows))
	out := make([]model.Record, 0, len(r.rows))
	removed := 0

	for _, row := range r.rows {
		k := model.KeyString(row[key])
		i, seen := position[k]
		if !seen {
			position[k] = len(out)
			out = append(out, row)
			continue
		}

		removed++
		if recency != "" {
			later, err := isLater(row[recency], out[i][recency])
			if err != nil {
				return 0, fmt.Errorf("key %s: %w", k, err)
			}
			if later {
				r.record(out[i], r.ds.Key(), k, nil, OpDuplicateRemoved, ReasonDuplicateKey)
				out[i] = row
				continue
			}
		}
		r.record(row, r.ds.Key(), k, nil, OpDuplicateRemoved, ReasonDuplicateKey)
	}

	r.rows = out
	return removed, nil
}

// isLater reports whether candidate is non-null and strictly after current
func isLater(candidate, current interface{}) (bool, error) {
	if candidate == nil {
		return false, nil
	}
	if current == nil {
		return true, nil
	}
	switch c := candidate.(type) {
	case time.Time:
		cur, ok := current.(time.Time)
		if !ok {
			return false, fmt.Errorf("cannot compare %T with %T", candidate, current)
		}
		return c.After(cur), nil
	case int64:
		cur, ok := current.(int64)
		if !ok {
			return false, fmt.Errorf("cannot compare %T with %T", candidate, current)
		}
		return c > cur, nil
	case float64:
		cur, ok := current.(float64)
		if !ok {
			return false, fmt.Errorf("cannot compare %T with %T", candidate, current)
		}
		return c > cur, nil
	default:
		return false, fmt.Errorf("unorderable recency value %T", candidate)
	}
}

// normalizeText trims every text field, proper-cases person names and turns
// blank text into null
func (r *cleanseRun) normalizeText() error {
	properCase := toSet(r.rules.properCase)
	for _, col := range r.ds.Metadata.Columns {
		if col.DataType != model.TypeText {
			continue
		}
		name := r.field(col.Name)
		for _, row := range r.rows {
			s, ok := row[name].(string)
			if !ok {
				continue
			}
			trimmed := strings.TrimSpace(s)
			switch {
			case trimmed == "":
				row[name] = nil
				r.record(row, col.Name, s, nil, OpBlankToNull, ReasonBlankValue)
			case properCase[col.Name]:
				cased := r.caser.String(trimmed)
				row[name] = cased
				if cased != s {
					r.record(row, col.Name, s, cased, OpProperCase, ReasonPersonName)
				}
			case trimmed != s:
				row[name] = trimmed
				r.record(row, col.Name, s, trimmed, OpTrim, ReasonWhitespace)
			}
		}
	}
	return nil
}

// mapCodes translates coded fields through their dictionaries, defaults blank
// informational fields to Unknown and normalizes category labels
func (r *cleanseRun) mapCodes() error {
	for _, col := range r.ds.Metadata.Columns {
		m, ok := r.resolvers.Codes.ForField(r.ds.Kind, col.Name)
		if !ok {
			continue
		}
		name := r.field(col.Name)
		for _, row := range r.rows {
			before := row[name]
			s, _ := before.(string)
			mapped, matched := m.Map(s)
			if before != nil && mapped == s {
				continue
			}
			row[name] = mapped
			reason := ReasonKnownVariant
			switch {
			case before == nil:
				reason = ReasonBlankValue
			case !matched:
				reason = ReasonUnrecognizedCode
			}
			r.record(row, col.Name, before, mapped, OpCodeMapping, reason)
		}
	}

	for _, field := range r.rules.unknownIfBlank {
		name := r.field(field)
		for _, row := range r.rows {
			if row[name] == nil {
				row[name] = resolver.Unknown
				r.record(row, field, nil, resolver.Unknown, OpDefaultUnknown, ReasonBlankValue)
			}
		}
	}

	if field := r.rules.normalizeCategory; field != "" {
		if r.resolvers.Category == nil {
			if r.require {
				return fmt.Errorf("category normalizer: %w", resolver.ErrResolverUnavailable)
			}
			r.fallbacks += len(r.rows)
			r.logger.Warn("Category normalizer unavailable, keeping labels as cleansed")
			return nil
		}
		name := r.field(field)
		for _, row := range r.rows {
			s, ok := row[name].(string)
			if !ok {
				continue
			}
			if normalized := r.resolvers.Category.Normalize(s); normalized != s {
				row[name] = normalized
				r.record(row, field, s, normalized, OpCategoryNormalize, ReasonPluralLabel)
			}
		}
	}
	return nil
}

// validate nulls non-positive measures and impossible dates and sign-corrects amounts
func (r *cleanseRun) validate() error {
	for _, field := range r.rules.positive {
		name := r.field(field)
		for _, row := range r.rows {
			v, ok, err := converter.ToFloat64(row[name])
			if err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			if ok && v <= 0 {
				r.record(row, field, row[name], nil, OpNullInvalid, ReasonNonPositive)
				row[name] = nil
			}
		}
	}

	for _, field := range r.rules.absolute {
		name := r.field(field)
		for _, row := range r.rows {
			v, ok := row[name].(float64)
			if ok && v < 0 {
				abs := math.Abs(v)
				row[name] = abs
				r.record(row, field, v, abs, OpSignCorrection, ReasonNegativeAmount)
			}
		}
	}

	for _, order := range r.rules.dateOrders {
		later, earlier := r.field(order.Later), r.field(order.Earlier)
		for _, row := range r.rows {
			l, lok := row[later].(time.Time)
			e, eok := row[earlier].(time.Time)
			if lok && eok && l.Before(e) {
				row[later] = nil
				r.record(row, order.Later, l, nil, OpNullInvalid, "precedes_"+order.Earlier)
			}
		}
	}

	for _, window := range r.rules.dateWindows {
		name := r.field(window.Field)
		for _, row := range r.rows {
			d, ok := row[name].(time.Time)
			if !ok {
				continue
			}
			switch {
			case window.NotFuture && d.After(r.now):
				row[name] = nil
				r.record(row, window.Field, d, nil, OpNullInvalid, ReasonFutureDate)
			case !window.Floor.IsZero() && d.Before(window.Floor):
				row[name] = nil
				r.record(row, window.Field, d, nil, OpNullInvalid, ReasonBeforeFloor)
			}
		}
	}
	return nil
}

// recompute derives sales_amount from quantity and price when both survived
// validation; otherwise the original amount is retained
func (r *cleanseRun) recompute() error {
	if !r.rules.recomputeTotal {
		return nil
	}
	quantity, price, amount := r.field("quantity"), r.field("price"), r.field("sales_amount")
	for _, row := range r.rows {
		q, qok, err := converter.ToFloat64(row[quantity])
		if err != nil {
			return fmt.Errorf("field quantity: %w", err)
		}
		p, pok, err := converter.ToFloat64(row[price])
		if err != nil {
			return fmt.Errorf("field price: %w", err)
		}
		if !qok || !pok {
			continue
		}
		total := q * p
		if current, ok := row[amount].(float64); ok && current == total {
			continue
		}
		r.record(row, "sales_amount", row[amount], total, OpRecompute, ReasonDerivedTotal)
		row[amount] = total
	}
	return nil
}

// correct replaces country with the territory authority's value for known cities.
// Unknown cities keep their cleansed country, which is already Unknown when blank.
func (r *cleanseRun) correct() error {
	if !r.rules.territoryCorrection {
		return nil
	}
	if r.resolvers.Territory == nil {
		if r.require {
			return fmt.Errorf("territory resolver: %w", resolver.ErrResolverUnavailable)
		}
		r.fallbacks += len(r.rows)
		r.logger.Warn("Territory resolver unavailable, keeping cleansed countries",
			zap.Int("rows", len(r.rows)))
		return nil
	}

	city, country := r.field("city"), r.field("country")
	for _, row := range r.rows {
		c, _ := row[city].(string)
		t, ok := r.resolvers.Territory.Resolve(c)
		if !ok || t.Country == "" {
			r.fallbacks++
			continue
		}
		if row[country] != t.Country {
			r.record(row, "country", row[country], t.Country, OpTerritoryCorrection, ReasonAuthoritativeCity)
			row[country] = t.Country
		}
	}
	return nil
}

// rename moves values from misspelled raw columns to their clean names
func (r *cleanseRun) rename() error {
	for _, col := range r.ds.Metadata.Columns {
		if col.RawName == "" {
			continue
		}
		for _, row := range r.rows {
			row[col.Name] = row[col.RawName]
			delete(row, col.RawName)
		}
		r.logger.Debug("Renamed column",
			zap.String("from", col.RawName),
			zap.String("to", col.Name))
	}
	r.renamed = true
	return nil
}

// stamp attaches the load timestamp to every surviving row
func (r *cleanseRun) stamp() error {
	for _, row := range r.rows {
		row[model.LoadTimestampColumn] = r.now
	}
	return nil
}

// output projects the working rows onto the clean column list
func (r *cleanseRun) output() []model.Record {
	names := r.ds.Metadata.ColumnNames(model.StageClean)
	out := make([]model.Record, 0, len(r.rows))
	for _, row := range r.rows {
		rec := make(model.Record, len(names))
		for _, n := range names {
			rec[n] = row[n]
		}
		out = append(out, rec)
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
