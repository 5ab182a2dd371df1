package quality

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

func checkID(kind model.Kind, category Category, letter string) string {
	return fmt.Sprintf("%s%d%s", model.MustLookup(kind).Letter, category.Number(), letter)
}

// label renders a value for group listings
func label(v interface{}) string {
	if v == nil {
		return NullLabel
	}
	s := model.KeyString(v)
	if s == "" {
		return BlankLabel
	}
	return s
}

func number(v interface{}, field string) (float64, bool, error) {
	f, ok, err := converter.ToFloat64(v)
	if err != nil {
		return 0, false, fmt.Errorf("field %s: %w", field, err)
	}
	return f, ok, nil
}

func date(v interface{}, field string) (time.Time, bool, error) {
	d, ok, err := converter.ToDate(v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("field %s: %w", field, err)
	}
	return d, ok, nil
}

// blankKey counts records whose business key is null or blank
func blankKey(kind model.Kind) Check {
	ds := model.MustLookup(kind)
	return blankFields(checkID(kind, CategoryCompleteness, "a"), kind,
		fmt.Sprintf("%s rows with null or blank %s", kind, ds.Key()), ds.Key())
}

// blankFields counts records where any of the fields is null or blank
func blankFields(id string, kind model.Kind, description string, fields ...string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryCompleteness, Metric: MetricCount, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			n := 0
			for _, row := range b.Rows {
				for _, f := range fields {
					if row.IsBlank(ec.col(kind, f)) {
						n++
						break
					}
				}
			}
			return Result{Count: n}, nil
		},
	}
}

// keyDuplicates lists business keys that occur more than once
func keyDuplicates(kind model.Kind) Check {
	ds := model.MustLookup(kind)
	return Check{
		ID: checkID(kind, CategoryUniqueness, "a"), Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryUniqueness, Metric: MetricGroups,
		Description: fmt.Sprintf("%s duplicate %s values", kind, ds.Key()),
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			key := ec.col(kind, ds.Key())
			groups := newGroupCounter()
			for _, row := range b.Rows {
				if row.IsBlank(key) {
					continue
				}
				groups.add(model.KeyString(row[key]))
			}
			return Result{Groups: groups.byValue(func(g GroupCount) bool { return g.Count > 1 })}, nil
		},
	}
}

// probe lists every distinct trimmed value of a field with its count
func probe(id string, kind model.Kind, field, description string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryValidity, Metric: MetricGroups, Probe: true, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			name := ec.col(kind, field)
			groups := newGroupCounter()
			for _, row := range b.Rows {
				groups.add(label(row[name]))
			}
			return Result{Groups: groups.byCount()}, nil
		},
	}
}

// untrimmed samples rows whose text fields carry leading or trailing whitespace
func untrimmed(id string, kind model.Kind, description string, fields ...string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryValidity, Metric: MetricSamples, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			var res Result
			for _, row := range b.Rows {
				for _, f := range fields {
					s, ok := row[ec.col(kind, f)].(string)
					if ok && s != strings.TrimSpace(s) {
						res.Count++
						res.Samples = ec.sample(res.Samples, row)
						break
					}
				}
			}
			return res, nil
		},
	}
}

// pattern samples rows whose non-blank field does not match a format
func pattern(id string, kind model.Kind, field string, re *regexp.Regexp, description string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryValidity, Metric: MetricSamples, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			name := ec.col(kind, field)
			var res Result
			for _, row := range b.Rows {
				if row.IsBlank(name) {
					continue
				}
				if !re.MatchString(model.KeyString(row[name])) {
					res.Count++
					res.Samples = ec.sample(res.Samples, row)
				}
			}
			return res, nil
		},
	}
}

// nonPositive counts rows where any of the numeric fields is zero or negative
func nonPositive(id string, kind model.Kind, description string, fields ...string) Check {
	return numericCheck(id, kind, description, fields, func(v float64) bool { return v <= 0 })
}

// negative counts rows where the numeric field is below zero
func negative(id string, kind model.Kind, field, description string) Check {
	return numericCheck(id, kind, description, []string{field}, func(v float64) bool { return v < 0 })
}

func numericCheck(id string, kind model.Kind, description string, fields []string, bad func(float64) bool) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryValidity, Metric: MetricCount, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			n := 0
			for _, row := range b.Rows {
				for _, f := range fields {
					v, ok, err := number(row[ec.col(kind, f)], f)
					if err != nil {
						return Result{}, err
					}
					if ok && bad(v) {
						n++
						break
					}
				}
			}
			return Result{Count: n}, nil
		},
	}
}

// dateBefore counts rows where later precedes earlier on the same record
func dateBefore(id string, kind model.Kind, later, earlier, description string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryConsistency, Metric: MetricCount, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			n := 0
			for _, row := range b.Rows {
				l, lok, err := date(row[ec.col(kind, later)], later)
				if err != nil {
					return Result{}, err
				}
				e, eok, err := date(row[ec.col(kind, earlier)], earlier)
				if err != nil {
					return Result{}, err
				}
				if lok && eok && l.Before(e) {
					n++
				}
			}
			return Result{Count: n}, nil
		},
	}
}

// orphans lists foreign key values with no match in the referenced dataset's
// refField (its business key when empty). Count is the number of orphaned rows.
func orphans(id string, kind model.Kind, fk string, ref model.Kind, refField, description string, normalize func(ec *evalContext, s string) string) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind, ref},
		Category: CategoryReferential, Metric: MetricGroups, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			target, err := ec.batch(ref)
			if err != nil {
				return Result{}, err
			}
			field := refField
			if field == "" {
				field = model.MustLookup(ref).Key()
			}
			refName := ec.col(ref, field)
			known := make(map[string]bool, target.Len())
			for _, row := range target.Rows {
				known[model.KeyString(row[refName])] = true
			}

			name := ec.col(kind, fk)
			groups := newGroupCounter()
			var res Result
			for _, row := range b.Rows {
				if row.IsBlank(name) {
					continue
				}
				v := model.KeyString(row[name])
				if normalize != nil {
					v = normalize(ec, v)
				}
				if !known[v] {
					res.Count++
					groups.add(v)
				}
			}
			res.Groups = groups.byValue(nil)
			return res, nil
		},
	}
}

// dateWindow counts rows whose date is in the future or outside a floor
func dateWindow(id string, kind model.Kind, field, description string, outside func(ec *evalContext, d time.Time) bool) Check {
	return Check{
		ID: id, Dataset: kind, Related: []model.Kind{kind},
		Category: CategoryTimeliness, Metric: MetricCount, Description: description,
		eval: func(ec *evalContext) (Result, error) {
			b, err := ec.batch(kind)
			if err != nil {
				return Result{}, err
			}
			n := 0
			for _, row := range b.Rows {
				d, ok, err := date(row[ec.col(kind, field)], field)
				if err != nil {
					return Result{}, err
				}
				if ok && outside(ec, d) {
					n++
				}
			}
			return Result{Count: n}, nil
		},
	}
}

func inFuture(ec *evalContext, d time.Time) bool {
	return d.After(ec.now)
}
