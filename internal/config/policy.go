package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ZoneRule is one row of the baseline zoning table: the allowed dwelling
// units per acre and floor-area ratio for a zoning code.
type ZoneRule struct {
	DensityPerAcre float64 `yaml:"density_per_acre" mapstructure:"density_per_acre"`
	FAR            float64 `yaml:"far" mapstructure:"far"`
}

// Constants holds the physical and financial assumptions behind the capacity
// math. Every value is deliberate and conservative; see the policy file for
// per-jurisdiction overrides.
type Constants struct {
	AvgUnitSqFt      float64 `yaml:"avg_unit_sqft" mapstructure:"avg_unit_sqft"`
	Efficiency       float64 `yaml:"efficiency" mapstructure:"efficiency"`
	AcreSqFt         float64 `yaml:"acre_sqft" mapstructure:"acre_sqft"`
	FloorHeightFt    float64 `yaml:"floor_height_ft" mapstructure:"floor_height_ft"`
	FloorHeightM     float64 `yaml:"floor_height_m" mapstructure:"floor_height_m"`
	SqFtPerSqM       float64 `yaml:"sqft_per_sqm" mapstructure:"sqft_per_sqm"`
	LotCoverage      float64 `yaml:"lot_coverage" mapstructure:"lot_coverage"`
	HeightCodeMin    float64 `yaml:"height_code_min" mapstructure:"height_code_min"`
	HeightCeilingFt  float64 `yaml:"height_ceiling_ft" mapstructure:"height_ceiling_ft"`
	DefaultFAR       float64 `yaml:"default_far" mapstructure:"default_far"`
	FallbackDensity  float64 `yaml:"fallback_density" mapstructure:"fallback_density"`
	DefaultHeightM   float64 `yaml:"default_height_m" mapstructure:"default_height_m"`
	UtilizationCap   float64 `yaml:"utilization_cap" mapstructure:"utilization_cap"`
	UtilizationLimit float64 `yaml:"utilization_limit" mapstructure:"utilization_limit"`
	MaxParcelSqFt    float64 `yaml:"max_parcel_sqft" mapstructure:"max_parcel_sqft"`
	SmallLotSqFt     float64 `yaml:"small_lot_sqft" mapstructure:"small_lot_sqft"`
}

// Feasibility holds the discount factors of the feasibility decision table.
// Each factor approximates the probability a parcel is actually redeveloped
// over a ~20 year horizon under the named constraint.
type Feasibility struct {
	Landmark      float64  `yaml:"landmark" mapstructure:"landmark"`
	Individual    float64  `yaml:"individual" mapstructure:"individual"`
	District      float64  `yaml:"district" mapstructure:"district"`
	Surveyed      float64  `yaml:"surveyed" mapstructure:"surveyed"`
	SteepSlope    float64  `yaml:"steep_slope" mapstructure:"steep_slope"`
	ModerateSlope float64  `yaml:"moderate_slope" mapstructure:"moderate_slope"`
	SmallLot      float64  `yaml:"small_lot" mapstructure:"small_lot"`
	TopTier       float64  `yaml:"top_tier" mapstructure:"top_tier"`
	Default       float64  `yaml:"default" mapstructure:"default"`
	TopTierCodes  []string `yaml:"top_tier_codes" mapstructure:"top_tier_codes"`
}

// Policy bundles every externally overridable table and threshold. It is
// passed by value into the capacity model and feasibility scorer so alternate
// policy sets can be substituted without touching process-wide state.
type Policy struct {
	Zoning      map[string]ZoneRule `yaml:"zoning" mapstructure:"zoning"`
	Constants   Constants           `yaml:"constants" mapstructure:"constants"`
	Feasibility Feasibility         `yaml:"feasibility" mapstructure:"feasibility"`
}

// DefaultPolicy returns the San Francisco policy set the original analysis
// was calibrated against.
func DefaultPolicy() Policy {
	return Policy{
		Zoning: map[string]ZoneRule{
			"RH-1": {DensityPerAcre: 30, FAR: 1.5},
			"RH-2": {DensityPerAcre: 45, FAR: 1.8},
			"RH-3": {DensityPerAcre: 60, FAR: 2.0},
			"RM-1": {DensityPerAcre: 90, FAR: 2.5},
			"RM-2": {DensityPerAcre: 120, FAR: 3.0},
			"RM-3": {DensityPerAcre: 150, FAR: 3.5},
		},
		Constants: Constants{
			AvgUnitSqFt:      800.0,
			Efficiency:       0.85,
			AcreSqFt:         43560.0,
			FloorHeightFt:    10.0,
			FloorHeightM:     3.0,
			SqFtPerSqM:       10.764,
			LotCoverage:      0.8,
			HeightCodeMin:    1000.0,
			HeightCeilingFt:  400.0,
			DefaultFAR:       2.0,
			FallbackDensity:  100.0,
			DefaultHeightM:   6.0,
			UtilizationCap:   2.0,
			UtilizationLimit: 0.8,
			MaxParcelSqFt:    43560.0,
			SmallLotSqFt:     2500.0,
		},
		Feasibility: Feasibility{
			Landmark:      0.02,
			Individual:    0.10,
			District:      0.15,
			Surveyed:      0.18,
			SteepSlope:    0.12,
			ModerateSlope: 0.18,
			SmallLot:      0.15,
			TopTier:       0.25,
			Default:       0.20,
			TopTierCodes:  []string{"T1Z1", "T1Z2"},
		},
	}
}

// LoadPolicyFile reads a standalone policy YAML and overlays it on base.
// Tables in the file replace the base tables wholesale; omitted sections keep
// the base values.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "config: read policy file %s", path)
	}
	var override Policy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Policy{}, eris.Wrapf(err, "config: parse policy file %s", path)
	}
	merged := mergePolicy(base, override)
	if err := ValidatePolicy(merged); err != nil {
		return Policy{}, err
	}
	return merged, nil
}

// mergePolicy overlays the non-zero parts of override on base.
func mergePolicy(base, override Policy) Policy {
	out := base
	if len(override.Zoning) > 0 {
		out.Zoning = override.Zoning
	}
	if override.Constants != (Constants{}) {
		out.Constants = override.Constants
	}
	if override.Feasibility.Default != 0 {
		out.Feasibility = override.Feasibility
	}
	return out
}

// ValidatePolicy checks that a policy set is internally consistent.
func ValidatePolicy(p Policy) error {
	c := p.Constants
	if c.AvgUnitSqFt <= 0 || c.AcreSqFt <= 0 || c.FloorHeightFt <= 0 || c.FloorHeightM <= 0 {
		return eris.New("policy: physical constants must be positive")
	}
	if c.Efficiency <= 0 || c.Efficiency > 1 {
		return eris.New("policy: efficiency must be in (0,1]")
	}
	if c.SqFtPerSqM <= 0 {
		return eris.New("policy: sqft_per_sqm must be positive")
	}
	for name, f := range map[string]float64{
		"landmark":       p.Feasibility.Landmark,
		"individual":     p.Feasibility.Individual,
		"district":       p.Feasibility.District,
		"surveyed":       p.Feasibility.Surveyed,
		"steep_slope":    p.Feasibility.SteepSlope,
		"moderate_slope": p.Feasibility.ModerateSlope,
		"small_lot":      p.Feasibility.SmallLot,
		"top_tier":       p.Feasibility.TopTier,
		"default":        p.Feasibility.Default,
	} {
		if f <= 0 || f > 1 {
			return eris.Errorf("policy: feasibility factor %s must be in (0,1], got %v", name, f)
		}
	}
	for code, rule := range p.Zoning {
		if rule.DensityPerAcre <= 0 || rule.FAR <= 0 {
			return eris.Errorf("policy: zoning rule %s must have positive density and FAR", code)
		}
	}
	return nil
}
