// Package quality runs the catalog of data quality checks over the raw or clean
// record store. Checks only read data; findings are reported, never fatal.
package quality

import (
	"sort"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Category groups checks by evaluation contract
type Category string

const (
	CategoryCompleteness Category = "completeness"
	CategoryUniqueness   Category = "uniqueness"
	CategoryValidity     Category = "validity"
	CategoryConsistency  Category = "consistency"
	CategoryReferential  Category = "referential_integrity"
	CategoryTimeliness   Category = "timeliness"
	CategoryCrossDataset Category = "cross_dataset"
)

// Number returns the digit used in check identifiers, 0 for cross-dataset checks
func (c Category) Number() int {
	switch c {
	case CategoryCompleteness:
		return 1
	case CategoryUniqueness:
		return 2
	case CategoryValidity:
		return 3
	case CategoryConsistency:
		return 4
	case CategoryReferential:
		return 5
	case CategoryTimeliness:
		return 6
	default:
		return 0
	}
}

// MetricKind is the shape of a check's metric
type MetricKind string

const (
	MetricCount   MetricKind = "count"
	MetricGroups  MetricKind = "groups"
	MetricSamples MetricKind = "samples"
)

// Labels used for null and blank values in group listings
const (
	NullLabel  = "<null>"
	BlankLabel = "<blank>"
)

// CrossDataset is the dataset label reported by K checks
const CrossDataset = "cross"

// GroupCount is one (value, count) pair of a group-by listing
type GroupCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Result is the outcome of one check. Count is the metric for count checks, the
// number of offending rows for sample checks and the number of groups for
// group listings.
type Result struct {
	CheckID     string         `json:"check_id" yaml:"check_id"`
	Dataset     string         `json:"dataset" yaml:"dataset"`
	Category    Category       `json:"category" yaml:"category"`
	Description string         `json:"description" yaml:"description"`
	Metric      MetricKind     `json:"metric" yaml:"metric"`
	Probe       bool           `json:"probe,omitempty" yaml:"probe,omitempty"`
	Count       int            `json:"count" yaml:"count"`
	Groups      []GroupCount   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Samples     []model.Record `json:"samples,omitempty" yaml:"samples,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// HasIssues reports whether the check found violations. Probes document value
// distributions and never count as issues.
func (r Result) HasIssues() bool {
	return !r.Probe && r.Error == "" && r.Count > 0
}

// Check is a named, independently runnable rule
type Check struct {
	ID          string
	Dataset     model.Kind   // primary dataset, empty for cross-dataset checks
	Related     []model.Kind // every dataset the check reads
	Category    Category
	Description string
	Metric      MetricKind
	Probe       bool
	eval        func(ec *evalContext) (Result, error)
}

// InScope reports whether the check runs for a dataset scope. Single-dataset
// checks run when their primary dataset is in scope; cross-dataset checks need
// every dataset they read.
func (c Check) InScope(scope map[model.Kind]bool) bool {
	if c.Dataset != "" {
		return scope[c.Dataset]
	}
	for _, k := range c.Related {
		if !scope[k] {
			return false
		}
	}
	return true
}

func (c Check) datasetLabel() string {
	if c.Dataset == "" {
		return CrossDataset
	}
	return string(c.Dataset)
}

// groupCounter accumulates a group-by-count listing in first-seen order
type groupCounter struct {
	counts map[string]int
	order  []string
}

func newGroupCounter() *groupCounter {
	return &groupCounter{counts: make(map[string]int)}
}

func (g *groupCounter) add(value string) {
	if _, ok := g.counts[value]; !ok {
		g.order = append(g.order, value)
	}
	g.counts[value]++
}

// byCount lists groups by descending count then value
func (g *groupCounter) byCount() []GroupCount {
	out := g.list(nil)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// byValue lists groups matching keep ordered by value
func (g *groupCounter) byValue(keep func(GroupCount) bool) []GroupCount {
	out := g.list(keep)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func (g *groupCounter) list(keep func(GroupCount) bool) []GroupCount {
	out := make([]GroupCount, 0, len(g.order))
	for _, v := range g.order {
		gc := GroupCount{Value: v, Count: g.counts[v]}
		if keep == nil || keep(gc) {
			out = append(out, gc)
		}
	}
	return out
}
