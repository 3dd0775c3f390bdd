package models

import "time"

// PackageStatus is the warehouse lifecycle of an inbound package
type PackageStatus string

const (
	PackageStatusPending         PackageStatus = "pending"
	PackageStatusAwaitingArrival PackageStatus = "awaiting_arrival"
	PackageStatusInWarehouse     PackageStatus = "in_warehouse"
	PackageStatusProcessing      PackageStatus = "processing"
	PackageStatusShipped         PackageStatus = "shipped"
	PackageStatusDelivered       PackageStatus = "delivered"
)

// Dimensions in centimetres
type Dimensions struct {
	Length Amount `json:"length"`
	Width  Amount `json:"width"`
	Height Amount `json:"height"`
}

// PackageImage is a warehouse photo of a package
type PackageImage struct {
	ID    ID     `json:"id"`
	Image string `json:"image"`
}

// ServiceRequest is an extra handling request (photos, repack, ...) on a package
type ServiceRequest struct {
	ID        ID     `json:"id,omitempty"`
	PackageID ID     `json:"package"`
	ServiceID ID     `json:"service"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status,omitempty"`
}

// WarehouseService is a purchasable handling service
type WarehouseService struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       Amount `json:"price"`
}

// Package is an inbound package held at the warehouse
type Package struct {
	ID               ID               `json:"id"`
	Status           PackageStatus    `json:"status"`
	Description      string           `json:"description,omitempty"`
	Weight           Amount           `json:"weight"`
	Dimensions       *Dimensions      `json:"dimensions,omitempty"`
	DeclaredValue    Amount           `json:"declared_value"`
	TrackingNumber   string           `json:"tracking_number,omitempty"`
	ServiceRequests  []ServiceRequest `json:"service_requests,omitempty"`
	Images           []PackageImage   `json:"images,omitempty"`
	IsPaid           bool             `json:"is_paid"`
	IsPaymentPending bool             `json:"is_payment_pending"`
	Amount           Amount           `json:"amount"`
	TotalDue         Amount           `json:"total_due"`
	CreatedAt        *time.Time       `json:"created_at,omitempty"`
}

// IsPayable reports whether a payment can be started for the package
func (p Package) IsPayable() bool {
	return p.IsPaymentPending && !p.IsPaid
}

// CanConsolidate reports whether the package may be bundled into a consolidation
func (p Package) CanConsolidate() bool {
	return p.Status == PackageStatusInWarehouse && !p.IsPaid
}
