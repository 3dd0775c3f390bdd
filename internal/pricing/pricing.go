// Package pricing holds the client-side consolidation estimate. The figure is
// provisional and for display only; payments always use the total confirmed
// by the server.
package pricing

import (
	"math"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
)

const (
	// ConsolidationBaseFee is charged for every consolidation
	ConsolidationBaseFee = 5.00
	// FreeWeightKg is included in the base fee
	FreeWeightKg = 2.0
	// FeePerExtraKg is charged for every kilogram above FreeWeightKg
	FeePerExtraKg = 1.00
)

// Estimate is a consolidation cost breakdown
type Estimate struct {
	TotalWeight models.Amount `json:"total_weight"`
	BaseFee     models.Amount `json:"base_fee"`
	WeightFee   models.Amount `json:"weight_fee"`
	Total       models.Amount `json:"total"`
}

// EstimateConsolidationCost estimates the cost of consolidating packages with
// the given weights in kilograms
func EstimateConsolidationCost(weightsKg []float64) Estimate {
	var total float64
	for _, w := range weightsKg {
		if w > 0 {
			total += w
		}
	}

	weightFee := math.Max(0, total-FreeWeightKg) * FeePerExtraKg

	return Estimate{
		TotalWeight: models.Amount(total).Cents(),
		BaseFee:     models.Amount(ConsolidationBaseFee).Cents(),
		WeightFee:   models.Amount(weightFee).Cents(),
		Total:       models.Amount(ConsolidationBaseFee + weightFee).Cents(),
	}
}

// EstimatePackages estimates the consolidation of pkgs
func EstimatePackages(pkgs []models.Package) Estimate {
	weights := make([]float64, 0, len(pkgs))
	for _, p := range pkgs {
		weights = append(weights, p.Weight.Float64())
	}
	return EstimateConsolidationCost(weights)
}
