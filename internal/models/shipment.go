package models

import (
	"strings"
	"time"
)

// ShipmentStatus is the canonical (upper-case) outbound shipment status
type ShipmentStatus string

const (
	ShipmentStatusPending        ShipmentStatus = "PENDING"
	ShipmentStatusProcessing     ShipmentStatus = "PROCESSING"
	ShipmentStatusInTransit      ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusCustoms        ShipmentStatus = "CUSTOMS"
	ShipmentStatusOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentStatusDelivered      ShipmentStatus = "DELIVERED"
	ShipmentStatusCancelled      ShipmentStatus = "CANCELLED"
	ShipmentStatusReturned       ShipmentStatus = "RETURNED"
)

// legacy lowercase values still emitted for older shipments
var legacyShipmentStatuses = map[string]ShipmentStatus{
	"pending":          ShipmentStatusPending,
	"processing":       ShipmentStatusProcessing,
	"shipped":          ShipmentStatusInTransit,
	"in_transit":       ShipmentStatusInTransit,
	"in-transit":       ShipmentStatusInTransit,
	"customs":          ShipmentStatusCustoms,
	"out_for_delivery": ShipmentStatusOutForDelivery,
	"delivered":        ShipmentStatusDelivered,
	"cancelled":        ShipmentStatusCancelled,
	"canceled":         ShipmentStatusCancelled,
	"returned":         ShipmentStatusReturned,
}

// NormalizeShipmentStatus maps legacy lowercase variants onto the canonical values
func NormalizeShipmentStatus(s string) ShipmentStatus {
	if canonical, ok := legacyShipmentStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return canonical
	}
	return ShipmentStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// StatusChoice is an entry of GET /shipping/status-choices/
type StatusChoice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Shipment is an outbound shipment, read-only from the dashboard
type Shipment struct {
	ID                  ID             `json:"id"`
	Carrier             string         `json:"carrier"`
	Status              string         `json:"status"`
	TrackingNumber      string         `json:"tracking_number,omitempty"`
	TrackingURL         string         `json:"tracking_url,omitempty"`
	ShippingCost        Amount         `json:"shipping_cost"`
	InsuranceCost       Amount         `json:"insurance_cost"`
	TotalCost           Amount         `json:"total_cost"`
	Packages            []Package      `json:"packages,omitempty"`
	ConsolidatedPackage *Consolidation `json:"consolidated_package,omitempty"`
	EstimatedDeliveryAt *time.Time     `json:"estimated_delivery,omitempty"`
	CreatedAt           *time.Time     `json:"created_at,omitempty"`
}

// CanonicalStatus returns the normalised status
func (s Shipment) CanonicalStatus() ShipmentStatus {
	return NormalizeShipmentStatus(s.Status)
}

// RateRequest is the body of the shipping calculator endpoints
type RateRequest struct {
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`
	Weight             Amount `json:"weight"`
	Length             Amount `json:"length,omitempty"`
	Width              Amount `json:"width,omitempty"`
	Height             Amount `json:"height,omitempty"`
	DeclaredValue      Amount `json:"declared_value,omitempty"`
}

// RateQuote is one carrier rate returned by the calculator
type RateQuote struct {
	Carrier               string `json:"carrier"`
	Service               string `json:"service,omitempty"`
	Price                 Amount `json:"price"`
	Currency              string `json:"currency,omitempty"`
	EstimatedDeliveryDays int    `json:"estimated_delivery_days,omitempty"`
}
