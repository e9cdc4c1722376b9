package output

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/studiosync"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/registry"
)

const maxCell = 48

// Report renders a batch run: one row per studio and the summary line.
type Report struct {
	*studiosync.Report
}

// Table implements Tabular.
func (r Report) Table(wide bool) Data {
	d := Data{Headers: []string{"ID", "Studio", "Status", "Changes", "Matched"}}
	if wide {
		d.Headers = append(d.Headers, "Parent", "Error")
	}
	for _, res := range r.Results {
		d.Rows = append(d.Rows, resultRow(res, wide))
	}
	d.Footer = []string{r.Report.String()}
	return d
}

// Result renders one studio: its change list, or its status when nothing
// changes.
type Result struct {
	*studiosync.Result
}

// Table implements Tabular.
func (r Result) Table(wide bool) Data {
	d := Data{Headers: []string{"Change", "Field", "Old", "New", "Source"}}
	if r.Plan != nil {
		for _, c := range r.Plan.Changes {
			d.Rows = append(d.Rows, []string{
				string(c.Type),
				c.Path,
				cell(c.OldValue, wide),
				cell(c.NewValue, wide),
				c.Source,
			})
		}
	}
	footer := fmt.Sprintf("%s (%s): %s", r.Studio.Name, r.Studio.ID, title(string(r.Status)))
	switch {
	case r.Error != "":
		footer += ": " + r.Error
	case r.DryRun && r.Status == studiosync.StatusUpdated:
		footer += " [dry run, not applied]"
	}
	d.Footer = []string{footer}
	return d
}

func resultRow(res *studiosync.Result, wide bool) []string {
	changes := "-"
	if res.Plan != nil && res.Plan.Changes.HasChanges() {
		changes = res.Plan.Changes.Summary()
	}
	matched := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		matched = append(matched, fmt.Sprintf("%s %.0f", m.Registry.DisplayName(), m.Result.Score))
	}
	row := []string{
		res.Studio.ID,
		cell(res.Studio.Name, wide),
		title(string(res.Status)),
		changes,
		orDash(strings.Join(matched, ", ")),
	}
	if wide {
		parent := "-"
		if res.Plan != nil && res.Plan.Target.ParentID != "" {
			parent = res.Plan.Target.ParentID
		}
		row = append(row, parent, orDash(res.Error))
	}
	return row
}

// Registries renders registry configs without their keys.
type Registries []registry.Config

// Table implements Tabular.
func (r Registries) Table(wide bool) Data {
	d := Data{Headers: []string{"Name", "Kind", "Endpoint", "Credentialed"}}
	if wide {
		d.Headers = append(d.Headers, "Base URL")
	}
	for _, c := range r {
		row := []string{c.DisplayName(), c.Kind.String(), c.ID, yesNo(c.Credentialed())}
		if wide {
			row = append(row, orDash(c.BaseURL))
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

// Scores renders matcher breakdowns against a threshold.
type Scores struct {
	Threshold  float64             `json:"threshold" yaml:"threshold"`
	Breakdowns []matcher.Breakdown `json:"breakdowns" yaml:"breakdowns"`
}

// Table implements Tabular.
func (s Scores) Table(wide bool) Data {
	d := Data{
		Headers:   []string{"Candidate", "Score", "Accepted"},
		Alignment: []Align{AlignLeft, AlignRight, AlignCenter},
	}
	if wide {
		d.Headers = append(d.Headers, "Ratio", "Partial", "Token Sort", "Token Set", "Order", "Affix", "Words", "Adjustments")
		d.Alignment = append(d.Alignment, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft)
	}
	for _, b := range s.Breakdowns {
		accepted := b.Exact || b.Score >= s.Threshold
		row := []string{b.Candidate, num(b.Score), yesNo(accepted)}
		if wide {
			adj := make([]string, 0, len(b.Adjustments))
			for _, a := range b.Adjustments {
				adj = append(adj, fmt.Sprintf("%s %+.0f", a.Reason, a.Delta))
			}
			row = append(row,
				num(b.Ratio), num(b.Partial), num(b.TokenSort), num(b.TokenSet),
				num(b.WordOrder), num(b.Affix), num(b.WordLength),
				orDash(strings.Join(adj, ", ")))
		}
		d.Rows = append(d.Rows, row)
	}
	if len(s.Breakdowns) > 0 {
		d.Footer = []string{fmt.Sprintf("input %q, threshold %s", s.Breakdowns[0].Input, num(s.Threshold))}
	}
	return d
}

func title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// cell shortens long values in narrow tables.
func cell(s string, wide bool) string {
	if s == "" {
		return "-"
	}
	if wide || len(s) <= maxCell {
		return s
	}
	return s[:maxCell-3] + "..."
}

// RegistryView is a registry as printed in JSON and YAML, without its key.
type RegistryView struct {
	Name         string `json:"name" yaml:"name"`
	Kind         string `json:"kind" yaml:"kind"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Credentialed bool   `json:"credentialed" yaml:"credentialed"`
}

// Views returns the registries without their keys.
func (r Registries) Views() []RegistryView {
	views := make([]RegistryView, len(r))
	for i, c := range r {
		views[i] = RegistryView{Name: c.DisplayName(), Kind: c.Kind.String(), Endpoint: c.ID, Credentialed: c.Credentialed()}
	}
	return views
}
