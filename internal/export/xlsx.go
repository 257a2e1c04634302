package export

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/report"
)

// WriteWorkbook writes the run summary as a multi-sheet XLSX workbook.
func WriteWorkbook(path string, s *report.Summary) error {
	f := xlsx.NewFile()

	if err := writeSummarySheet(f, s); err != nil {
		return err
	}
	if err := writeDistributionSheet(f, "Tiers", "Tier", s.TierCounts); err != nil {
		return err
	}
	if err := writeDistributionSheet(f, "Historic", "Type", s.HistoricCounts); err != nil {
		return err
	}
	if err := writeFeasibilitySheet(f, s); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	zap.L().Info("export: wrote workbook", zap.String("path", path))
	return nil
}

func writeSummarySheet(f *xlsx.File, s *report.Summary) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addKV := func(k string, v any) {
		row := sheet.AddRow()
		row.AddCell().Value = k
		setCell(row.AddCell(), v)
	}

	addKV("parcels ingested", s.Stats.ParcelsIngested)
	addKV("excluded: open space", s.Stats.ExcludedOpenSpace)
	addKV("excluded: oversized lot", s.Stats.ExcludedOversized)
	addKV("excluded: over-utilized", s.Stats.ExcludedOverUtilized)
	addKV("parcels analyzed", s.Stats.ParcelsFinal)
	sheet.AddRow()
	addKV("baseline units", s.BaselineUnits)
	addKV("upzoned units", s.UpzonedUnits)
	addKV("added units (theoretical)", s.AddedUnitsTheoretical)
	addKV("added units (realistic)", s.AddedUnitsRealistic)
	sheet.AddRow()
	addKV("historic parcels", s.HistoricCount)
	addKV("steep slope parcels", s.SteepSlopeCount)
	addKV("moderate slope parcels", s.ModerateSlopeCount)
	addKV("vacant parcels", s.VacantCount)
	return nil
}

func writeDistributionSheet(f *xlsx.File, name, keyHeader string, counts map[string]int) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add %s sheet", name)
	}

	header := sheet.AddRow()
	header.AddCell().Value = keyHeader
	header.AddCell().Value = "Parcels"

	for _, k := range sortedKeys(counts) {
		row := sheet.AddRow()
		row.AddCell().Value = k
		row.AddCell().SetInt(counts[k])
	}
	return nil
}

func writeFeasibilitySheet(f *xlsx.File, s *report.Summary) error {
	sheet, err := f.AddSheet("Feasibility")
	if err != nil {
		return eris.Wrap(err, "export: add feasibility sheet")
	}

	header := sheet.AddRow()
	header.AddCell().Value = "Rule"
	header.AddCell().Value = "Factor"
	header.AddCell().Value = "Parcels"

	for _, name := range sortedKeys(s.FeasibilityRules) {
		st := s.FeasibilityRules[name]
		row := sheet.AddRow()
		row.AddCell().Value = name
		row.AddCell().SetFloat(st.Factor)
		row.AddCell().SetInt(st.Count)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case int:
		c.SetInt(x)
	case float64:
		c.SetFloat(x)
	case string:
		c.Value = x
	}
}
