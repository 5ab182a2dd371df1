// Package report renders run reports, quality diagnostics, dataset status and
// views as text tables, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/pipeline"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/quality"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/view"
)

// Format selects the output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "table", "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected text, json or yaml)", s)
	}
}

// Renderer writes reports to w in one format
type Renderer struct {
	w      io.Writer
	format Format
}

// NewRenderer creates a renderer
func NewRenderer(w io.Writer, format Format) *Renderer {
	if format == "" {
		format = FormatText
	}
	return &Renderer{w: w, format: format}
}

func (r *Renderer) encode(v interface{}) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not an encoding", r.format)
	}
}

func (r *Renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// Run renders a full pipeline run report
func (r *Renderer) Run(report *pipeline.RunReport) error {
	if r.format != FormatText {
		return r.encode(report)
	}

	status := "succeeded"
	if !report.Succeeded() {
		status = "completed with failures"
	}
	fmt.Fprintf(r.w, "Run %s %s in %s\n", report.RunID, status,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if len(report.Load) > 0 {
		r.loadTable(report.Load)
	}
	if report.RawQuality != nil {
		r.qualityTable(report.RawQuality, false)
	}
	if len(report.Cleansing) > 0 {
		r.cleansingTable(report.Cleansing)
	}
	if report.CleanQuality != nil {
		r.qualityTable(report.CleanQuality, false)
	}
	if len(report.Verification) > 0 {
		r.verificationTable(report.Verification)
	}
	r.errorTable(report)
	return nil
}

// Load renders load results
func (r *Renderer) Load(results []*pipeline.DatasetResult) error {
	if r.format != FormatText {
		return r.encode(results)
	}
	r.loadTable(results)
	r.datasetErrors(results)
	return nil
}

// Cleansing renders cleansing results
func (r *Renderer) Cleansing(results []*pipeline.DatasetResult) error {
	if r.format != FormatText {
		return r.encode(results)
	}
	r.cleansingTable(results)
	r.datasetErrors(results)
	return nil
}

// Quality renders a quality report including group counts and samples
func (r *Renderer) Quality(report *quality.Report) error {
	if r.format != FormatText {
		return r.encode(report)
	}
	r.qualityTable(report, true)
	return nil
}

// Status renders the load state of datasets
func (r *Renderer) Status(statuses []store.DatasetStatus) error {
	if r.format != FormatText {
		return r.encode(statuses)
	}
	t := r.newTable("Datasets")
	t.AppendHeader(table.Row{"Stage", "Dataset", "Available", "Rows", "Loaded At"})
	for _, s := range statuses {
		loaded := ""
		if !s.LoadedAt.IsZero() {
			loaded = s.LoadedAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{s.Stage, s.Dataset, s.Available, s.Rows, loaded})
	}
	t.Render()
	return nil
}

// View renders at most limit rows of a view; limit <= 0 renders all rows
func (r *Renderer) View(v *view.Table, limit int) error {
	rows := v.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if r.format != FormatText {
		return r.encode(&view.Table{Name: v.Name, Columns: v.Columns, Rows: rows, BuiltAt: v.BuiltAt})
	}

	t := r.newTable(string(v.Name))
	header := make(table.Row, len(v.Columns))
	for i, c := range v.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range rows {
		out := make(table.Row, len(v.Columns))
		for i, c := range v.Columns {
			out[i] = FormatValue(row[c])
		}
		t.AppendRow(out)
	}
	t.Render()
	fmt.Fprintf(r.w, "(%d of %d rows)\n", len(rows), v.Len())
	return nil
}

func (r *Renderer) loadTable(results []*pipeline.DatasetResult) {
	t := r.newTable("Load")
	t.AppendHeader(table.Row{"Dataset", "Status", "Rows", "Duration"})
	for _, res := range results {
		t.AppendRow(table.Row{res.Dataset, res.Status, res.RowsLoaded, res.Duration.Round(time.Millisecond)})
	}
	t.Render()
}

func (r *Renderer) cleansingTable(results []*pipeline.DatasetResult) {
	t := r.newTable("Cleansing")
	t.AppendHeader(table.Row{"Dataset", "Status", "Read", "Rejected", "Deduplicated", "Cleansed", "Fallbacks", "Changes"})
	for _, res := range results {
		t.AppendRow(table.Row{res.Dataset, res.Status, res.RowsLoaded, res.RowsRejected, res.RowsDeduplicated,
			res.RowsCleansed, res.ResolverFallbacks, res.CleaningOperations})
	}
	t.Render()
}

func (r *Renderer) qualityTable(report *quality.Report, details bool) {
	t := r.newTable(fmt.Sprintf("Quality checks (%s): %d of %d with issues",
		report.Stage, report.IssueCount(), len(report.Results)))
	t.AppendHeader(table.Row{"Check", "Dataset", "Category", "Metric", "Count", "Description"})
	for _, res := range report.Results {
		count := interface{}(res.Count)
		if res.Error != "" {
			count = "error: " + res.Error
		}
		t.AppendRow(table.Row{res.CheckID, res.Dataset, res.Category, res.Metric, count, res.Description})
	}
	t.Render()

	if !details {
		return
	}
	for _, res := range report.Results {
		if len(res.Groups) > 0 {
			g := r.newTable(res.CheckID)
			g.AppendHeader(table.Row{"Value", "Count"})
			for _, gc := range res.Groups {
				g.AppendRow(table.Row{gc.Value, gc.Count})
			}
			g.Render()
		}
		if len(res.Samples) > 0 {
			r.samplesTable(res.CheckID, res.Samples)
		}
	}
}

func (r *Renderer) samplesTable(title string, samples []model.Record) {
	cols := make([]string, 0)
	seen := make(map[string]bool)
	for _, s := range samples {
		for k := range s {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	t := r.newTable(title + " samples")
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, s := range samples {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = FormatValue(s[c])
		}
		t.AppendRow(row)
	}
	t.Render()
}

func (r *Renderer) verificationTable(results map[model.Kind]*pipeline.Verification) {
	kinds := make([]string, 0, len(results))
	for k := range results {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	t := r.newTable("Verification")
	t.AppendHeader(table.Row{"Dataset", "Raw", "Clean", "Issue", "Rows", "Description"})
	for _, k := range kinds {
		v := results[model.Kind(k)]
		if v.Passed() {
			t.AppendRow(table.Row{k, v.RawRowCount, v.CleanRowCount, "ok", 0, ""})
			continue
		}
		for _, issue := range v.Issues {
			t.AppendRow(table.Row{k, v.RawRowCount, v.CleanRowCount, issue.IssueType, issue.AffectedRows, issue.Description})
		}
	}
	t.Render()
}

func (r *Renderer) errorTable(report *pipeline.RunReport) {
	all := append(append([]*pipeline.DatasetResult(nil), report.Load...), report.Cleansing...)
	r.datasetErrors(all)
}

func (r *Renderer) datasetErrors(results []*pipeline.DatasetResult) {
	var rows []table.Row
	for _, res := range results {
		for _, e := range res.Errors {
			rows = append(rows, table.Row{res.Dataset, e.Stage, e.Category, e.Message})
		}
		for _, w := range res.Warnings {
			rows = append(rows, table.Row{res.Dataset, "", "Warning", w})
		}
	}
	if len(rows) == 0 {
		return
	}
	t := r.newTable("Errors")
	t.AppendHeader(table.Row{"Dataset", "Stage", "Category", "Message"})
	t.AppendRows(rows)
	t.Render()
}

// FormatValue renders a record value for tables
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
