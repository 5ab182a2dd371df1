package pipeline

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// Integrity issue types reported by the verifier
const (
	IssueKeyNull        = "key_null"
	IssueKeyDuplicate   = "key_duplicate"
	IssueRowCount       = "row_count"
	IssueReturnSign     = "return_sign"
	IssueSalesRecompute = "sales_recompute"
	IssueCorrection     = "territory_correction"
	IssueVocabulary     = "vocabulary"
)

// IntegrityIssue represents a violated post-cleanse invariant
type IntegrityIssue struct {
	IssueType    string `json:"issue_type" yaml:"issue_type"`
	Description  string `json:"description" yaml:"description"`
	ColumnName   string `json:"column,omitempty" yaml:"column,omitempty"`
	AffectedRows int    `json:"affected_rows" yaml:"affected_rows"`
}

// Verification contains the results of verifying one clean dataset
type Verification struct {
	Dataset          model.Kind       `json:"dataset" yaml:"dataset"`
	VerificationTime time.Time        `json:"verification_time" yaml:"verification_time"`
	RawRowCount      int              `json:"raw_rows" yaml:"raw_rows"`
	CleanRowCount    int              `json:"clean_rows" yaml:"clean_rows"`
	Issues           []IntegrityIssue `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Passed reports whether every invariant held
func (v *Verification) Passed() bool {
	return len(v.Issues) == 0
}

func (v *Verification) add(issueType, column string, rows int, format string, args ...interface{}) {
	if rows == 0 {
		return
	}
	v.Issues = append(v.Issues, IntegrityIssue{
		IssueType:    issueType,
		Description:  fmt.Sprintf(format, args...),
		ColumnName:   column,
		AffectedRows: rows,
	})
}

// Verifier checks the invariants every clean dataset must satisfy
type Verifier struct {
	logger *zap.Logger
	codes  *resolver.Dictionaries
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		logger: logger.Named("verifier"),
		codes:  resolver.DefaultDictionaries(),
	}
}

// Verify compares a clean batch against the raw batch it was derived from
func (v *Verifier) Verify(raw, clean *model.Batch, resolvers resolver.Set) *Verification {
	ds := model.MustLookup(clean.Dataset)
	report := &Verification{
		Dataset:          clean.Dataset,
		VerificationTime: time.Now(),
		RawRowCount:      raw.Len(),
		CleanRowCount:    clean.Len(),
	}

	if clean.Len() > raw.Len() {
		report.add(IssueRowCount, "", clean.Len()-raw.Len(),
			"clean dataset has %d rows, raw has %d", clean.Len(), raw.Len())
	}

	key := ds.Key()
	nulls, dups := 0, 0
	seen := make(map[string]bool, clean.Len())
	for _, row := range clean.Rows {
		if row.IsBlank(key) {
			nulls++
			continue
		}
		k := model.KeyString(row[key])
		if seen[k] {
			dups++
		}
		seen[k] = true
	}
	report.add(IssueKeyNull, key, nulls, "%d rows without a business key", nulls)
	report.add(IssueKeyDuplicate, key, dups, "%d duplicate business keys", dups)

	codes := resolvers.Codes
	if codes == nil {
		codes = v.codes
	}
	for _, field := range codes.ClosedFields()[clean.Dataset] {
		m, ok := codes.ForField(clean.Dataset, field)
		if !ok {
			continue
		}
		outside := 0
		for _, row := range clean.Rows {
			s, ok, _ := converter.ToText(row[field])
			if ok && !m.Contains(s) {
				outside++
			}
		}
		report.add(IssueVocabulary, field, outside, "%d values outside the %s vocabulary", outside, field)
	}

	switch clean.Dataset {
	case model.KindReturn:
		negative := 0
		for _, row := range clean.Rows {
			if f, ok, _ := converter.ToFloat64(row["return_amount"]); ok && f < 0 {
				negative++
			}
		}
		report.add(IssueReturnSign, "return_amount", negative, "%d negative return amounts", negative)

	case model.KindSalesOrder:
		mismatched := 0
		for _, row := range clean.Rows {
			q, qok, _ := converter.ToInt64(row["quantity"])
			p, pok, _ := converter.ToFloat64(row["price"])
			s, sok, _ := converter.ToFloat64(row["sales_amount"])
			if qok && pok && (!sok || math.Abs(s-float64(q)*p) > 1e-6) {
				mismatched++
			}
		}
		report.add(IssueSalesRecompute, "sales_amount", mismatched,
			"%d sales amounts differ from quantity times price", mismatched)

	case model.KindSpatial:
		if resolvers.Territory == nil {
			break
		}
		wrong := 0
		for _, row := range clean.Rows {
			city, ok, _ := converter.ToText(row["city"])
			if !ok {
				continue
			}
			t, found := resolvers.Territory.Resolve(city)
			if !found || t.Country == "" {
				continue
			}
			country, _, _ := converter.ToText(row["country"])
			if country != t.Country {
				wrong++
			}
		}
		report.add(IssueCorrection, "country", wrong, "%d locations disagree with the territory authority", wrong)
	}

	if !report.Passed() {
		v.logger.Warn("Clean dataset failed verification",
			zap.String("dataset", string(clean.Dataset)),
			zap.Int("issues", len(report.Issues)))
	}
	return report
}
