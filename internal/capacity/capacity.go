// Package capacity computes baseline and upzoned allowable unit counts per
// parcel. Every function is pure over an explicit policy value so alternate
// policy sets can be substituted in tests or for other jurisdictions.
package capacity

import (
	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// UnitsAllowed returns the binding constraint between the density cap and the
// floor-area cap: density-per-acre times acreage, against gross floor area
// converted to units through the efficiency factor and average unit size.
func UnitsAllowed(areaSqFt, densityPerAcre, far float64, c config.Constants) float64 {
	byDensity := densityPerAcre * areaSqFt / c.AcreSqFt
	byFAR := areaSqFt * far * c.Efficiency / c.AvgUnitSqFt
	return min(byDensity, byFAR)
}

// heightDerivedFAR converts a height-district limit into an effective FAR via
// floor height and a typical lot-coverage factor. Height values at or above
// the special-code threshold mean "unlimited" and remap to a fixed ceiling
// before dividing.
func heightDerivedFAR(heightFt float64, c config.Constants) float64 {
	if heightFt >= c.HeightCodeMin {
		heightFt = c.HeightCeilingFt
	}
	return heightFt / c.FloorHeightFt * c.LotCoverage
}

// heightLimit extracts a usable height limit, if any.
func heightLimit(p *parcel.Parcel) (float64, bool) {
	if p.HeightLimitFt == nil || *p.HeightLimitFt <= 0 {
		return 0, false
	}
	return *p.HeightLimitFt, true
}

// BaselineFAR returns the effective pre-upzoning FAR for a parcel: the more
// restrictive of the zoning-table FAR and the height-derived FAR. Zoning
// codes absent from the table fall back to the height-derived FAR, then to
// the fixed default.
func BaselineFAR(p *parcel.Parcel, pol config.Policy) float64 {
	c := pol.Constants
	rule, inTable := pol.Zoning[p.ZoningCode]
	h, hasHeight := heightLimit(p)

	if inTable {
		far := rule.FAR
		if hasHeight {
			if hf := heightDerivedFAR(h, c); hf < far {
				far = hf
			}
		}
		return far
	}
	if hasHeight {
		return heightDerivedFAR(h, c)
	}
	return c.DefaultFAR
}

// BaselineUnits returns the units allowed under pre-upzoning rules. In-table
// zoning codes use the table density; unknown codes use the fixed fallback
// density, conservative for commercial and mixed-use zones that often allow
// more.
func BaselineUnits(p *parcel.Parcel, pol config.Policy) float64 {
	c := pol.Constants
	far := BaselineFAR(p, pol)
	if _, inTable := pol.Zoning[p.ZoningCode]; inTable {
		return UnitsAllowed(p.AreaSqFt, pol.Zoning[p.ZoningCode].DensityPerAcre, far, c)
	}
	return UnitsAllowed(p.AreaSqFt, c.FallbackDensity, far, c)
}

// UpzonedUnits returns the units allowed under the transit-tier overlay,
// using the tier layer's own attached density and FAR. Zero when the parcel
// is outside every tier zone or either attribute is missing.
func UpzonedUnits(p *parcel.Parcel, pol config.Policy) float64 {
	if p.Tier == nil || p.Tier.MaxDensity == nil || p.Tier.FAR == nil {
		return 0
	}
	return UnitsAllowed(p.AreaSqFt, *p.Tier.MaxDensity, *p.Tier.FAR, pol.Constants)
}

// AddedUnits returns the theoretical capacity gain, clamped at zero for
// parcels whose baseline already exceeds the overlay.
func AddedUnits(baseline, upzoned float64) float64 {
	if upzoned <= baseline {
		return 0
	}
	return upzoned - baseline
}

// ExistingFAR returns built floor area over parcel area.
func ExistingFAR(builtSqFt, areaSqFt float64) float64 {
	if areaSqFt <= 0 {
		return 0
	}
	return builtSqFt / areaSqFt
}

// Utilization measures how much of the upzoned capacity is already used,
// clipped at the cap. Parcels outside any tier zone always get zero: they
// will not benefit from the overlay, so the utilization exclusion never
// applies to them. A parcel at full baseline utilization but half its
// upzoned FAR is a strong candidate, which is why the denominator is the
// overlay FAR, not the baseline.
func Utilization(existingFAR float64, t *parcel.Tier, c config.Constants) float64 {
	if existingFAR == 0 || t == nil || t.FAR == nil || *t.FAR <= 0 {
		return 0
	}
	return min(existingFAR / *t.FAR, c.UtilizationCap)
}

// BaselineUtilization is the reference utilization against the pre-upzoning
// FAR, clipped at the cap.
func BaselineUtilization(existingFAR, baselineFAR float64, c config.Constants) float64 {
	if existingFAR == 0 || baselineFAR <= 0 {
		return 0
	}
	return min(existingFAR/baselineFAR, c.UtilizationCap)
}
