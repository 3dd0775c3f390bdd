package models

import "time"

// Consolidation bundles several warehouse packages into one outbound shipment
type Consolidation struct {
	ID               ID          `json:"id"`
	Packages         []Package   `json:"packages"`
	TotalWeight      Amount      `json:"total_weight"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	BaseFee          Amount      `json:"base_fee"`
	WeightFee        Amount      `json:"weight_fee"`
	TotalCost        Amount      `json:"total_cost"`
	Status           string      `json:"status"`
	Notes            string      `json:"notes,omitempty"`
	IsPaid           bool        `json:"is_paid"`
	IsPaymentPending bool        `json:"is_payment_pending"`
	CreatedAt        *time.Time  `json:"created_at,omitempty"`
}

// IsPayable reports whether a payment can be started for the consolidation
func (c Consolidation) IsPayable() bool {
	return c.IsPaymentPending && !c.IsPaid
}

// ConsolidateRequest is the body of POST /shipping/consolidate/
type ConsolidateRequest struct {
	PackageIDs []ID   `json:"package_ids"`
	Notes      string `json:"notes,omitempty"`
}
