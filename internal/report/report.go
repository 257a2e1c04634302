// Package report aggregates a finished run into the console summary: capacity
// totals, constraint counts, tier and feasibility distributions, and
// utilization histograms for both the upzoned and baseline scenarios.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/upzone-cli/internal/pipeline"
)

// utilizationBins are the histogram edges shared by both scenarios. The last
// bin is open-ended; anything at or above the exclusion threshold was removed
// before scoring, so the upzoned column there is always zero.
var utilizationBins = []struct {
	label string
	lo    float64
	hi    float64
}{
	{"0.0 - 0.2", 0.0, 0.2},
	{"0.2 - 0.4", 0.2, 0.4},
	{"0.4 - 0.6", 0.4, 0.6},
	{"0.6 - 0.8", 0.6, 0.8},
	{"0.8 +", 0.8, -1},
}

// Summary is the aggregated view of one run.
type Summary struct {
	Stats pipeline.Stats

	BaselineUnits         float64
	UpzonedUnits          float64
	AddedUnitsTheoretical float64
	AddedUnitsRealistic   float64

	HistoricCount      int
	SteepSlopeCount    int
	ModerateSlopeCount int
	VacantCount        int

	TierCounts       map[string]int
	HistoricCounts   map[string]int
	FeasibilityRules map[string]RuleStat

	UtilizationHist         []int
	BaselineUtilizationHist []int
}

// RuleStat is the count of parcels scored by one feasibility rule.
type RuleStat struct {
	Count  int
	Factor float64
}

// Summarize folds the per-parcel dataset into a Summary.
func Summarize(res *pipeline.Result) *Summary {
	s := &Summary{
		Stats:                   res.Stats,
		TierCounts:              map[string]int{},
		HistoricCounts:          map[string]int{},
		FeasibilityRules:        map[string]RuleStat{},
		UtilizationHist:         make([]int, len(utilizationBins)),
		BaselineUtilizationHist: make([]int, len(utilizationBins)),
	}
	for _, p := range res.Parcels {
		s.BaselineUnits += p.BaselineUnits
		s.UpzonedUnits += p.UpzonedUnits
		s.AddedUnitsTheoretical += p.AddedUnitsTheoretical
		s.AddedUnitsRealistic += p.AddedUnitsRealistic

		if p.IsHistoric {
			s.HistoricCount++
			s.HistoricCounts[p.HistoricType]++
		}
		if p.IsSteepSlope {
			s.SteepSlopeCount++
		}
		if p.IsModerateSlope {
			s.ModerateSlopeCount++
		}
		if p.NumBuildings == 0 {
			s.VacantCount++
		}
		if p.Tier != nil {
			s.TierCounts[p.Tier.Code]++
		}

		st := s.FeasibilityRules[p.FeasibilityRule]
		st.Count++
		st.Factor = p.FeasibilityFactor
		s.FeasibilityRules[p.FeasibilityRule] = st

		binInto(s.UtilizationHist, p.Utilization)
		binInto(s.BaselineUtilizationHist, p.BaselineUtilization)
	}
	return s
}

func binInto(hist []int, v float64) {
	for i, b := range utilizationBins {
		if b.hi < 0 || v < b.hi {
			hist[i]++
			return
		}
	}
}

// Render writes the full console report.
func (s *Summary) Render(w io.Writer) {
	pr := message.NewPrinter(language.English)

	fmt.Fprintln(w, "Run summary")

	t := newTable(w)
	t.AppendHeader(table.Row{"Stage", "Parcels"})
	t.AppendRow(table.Row{"ingested", pr.Sprintf("%d", s.Stats.ParcelsIngested)})
	t.AppendRow(table.Row{"excluded: open space", pr.Sprintf("%d", s.Stats.ExcludedOpenSpace)})
	t.AppendRow(table.Row{"excluded: oversized lot", pr.Sprintf("%d", s.Stats.ExcludedOversized)})
	t.AppendRow(table.Row{"excluded: over-utilized", pr.Sprintf("%d", s.Stats.ExcludedOverUtilized)})
	t.AppendRow(table.Row{"analyzed", pr.Sprintf("%d", s.Stats.ParcelsFinal)})
	t.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Capacity")
	t = newTable(w)
	t.AppendHeader(table.Row{"Scenario", "Units"})
	t.AppendRow(table.Row{"baseline zoning", pr.Sprintf("%.0f", s.BaselineUnits)})
	t.AppendRow(table.Row{"upzoned", pr.Sprintf("%.0f", s.UpzonedUnits)})
	t.AppendRow(table.Row{"added (theoretical)", pr.Sprintf("%.0f", s.AddedUnitsTheoretical)})
	t.AppendRow(table.Row{"added (realistic)", pr.Sprintf("%.0f", s.AddedUnitsRealistic)})
	t.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Constraints")
	t = newTable(w)
	t.AppendHeader(table.Row{"Constraint", "Parcels", "Share"})
	total := s.Stats.ParcelsFinal
	t.AppendRow(table.Row{"historic", pr.Sprintf("%d", s.HistoricCount), pct(s.HistoricCount, total)})
	t.AppendRow(table.Row{"steep slope (>25%)", pr.Sprintf("%d", s.SteepSlopeCount), pct(s.SteepSlopeCount, total)})
	t.AppendRow(table.Row{"moderate slope (20-25%)", pr.Sprintf("%d", s.ModerateSlopeCount), pct(s.ModerateSlopeCount, total)})
	t.AppendRow(table.Row{"vacant", pr.Sprintf("%d", s.VacantCount), pct(s.VacantCount, total)})
	t.Render()

	if len(s.HistoricCounts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Historic classification")
		t = newTable(w)
		t.AppendHeader(table.Row{"Type", "Parcels"})
		for _, k := range sortedKeys(s.HistoricCounts) {
			t.AppendRow(table.Row{k, pr.Sprintf("%d", s.HistoricCounts[k])})
		}
		t.Render()
	}

	if len(s.TierCounts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Transit tiers")
		t = newTable(w)
		t.AppendHeader(table.Row{"Tier", "Parcels"})
		for _, k := range sortedKeys(s.TierCounts) {
			t.AppendRow(table.Row{k, pr.Sprintf("%d", s.TierCounts[k])})
		}
		t.Render()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Feasibility")
	t = newTable(w)
	t.AppendHeader(table.Row{"Rule", "Factor", "Parcels"})
	for _, k := range sortedKeys(s.FeasibilityRules) {
		st := s.FeasibilityRules[k]
		t.AppendRow(table.Row{k, fmt.Sprintf("%.2f", st.Factor), pr.Sprintf("%d", st.Count)})
	}
	t.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Utilization (existing built area vs allowed)")
	t = newTable(w)
	t.AppendHeader(table.Row{"Bin", "Upzoned", "Baseline"})
	for i, b := range utilizationBins {
		t.AppendRow(table.Row{
			b.label,
			pr.Sprintf("%d", s.UtilizationHist[i]),
			pr.Sprintf("%d", s.BaselineUtilizationHist[i]),
		})
	}
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func pct(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
