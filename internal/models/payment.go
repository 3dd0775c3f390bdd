package models

import "time"

// Wallet is the user's prepaid balance
type Wallet struct {
	Balance  Amount `json:"balance"`
	Currency string `json:"currency"`
}

// TransactionType is credit or debit
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionStatus is the settlement state of a wallet transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Transaction is a wallet ledger entry
type Transaction struct {
	ID          ID                `json:"id"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Amount      Amount            `json:"amount"`
	Description string            `json:"description,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Invoice is a billing document
type Invoice struct {
	ID          ID                `json:"id"`
	Number      string            `json:"invoice_number,omitempty"`
	Type        TransactionType   `json:"type,omitempty"`
	Status      TransactionStatus `json:"status"`
	Amount      Amount            `json:"amount"`
	Description string            `json:"description,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// CourierOption is a quote offered before a package payment
type CourierOption struct {
	ID                    ID       `json:"id"`
	Name                  string   `json:"name"`
	Price                 Amount   `json:"price"`
	Currency              string   `json:"currency"`
	EstimatedDeliveryDays int      `json:"estimated_delivery_days"`
	Badges                []string `json:"badges,omitempty"`
	HasInsurance          bool     `json:"insurance"`
	HasTracking           bool     `json:"tracking"`
}

// SelectCourierResponse is returned after choosing a courier for a package
type SelectCourierResponse struct {
	TotalDue Amount `json:"total_due"`
	Message  string `json:"message,omitempty"`
}

// HasPinResponse reports whether a wallet PIN is configured
type HasPinResponse struct {
	HasPin bool `json:"has_pin"`
}

// PinRequest sets, updates or resets the wallet PIN
type PinRequest struct {
	Pin      string `json:"pin,omitempty"`
	OldPin   string `json:"old_pin,omitempty"`
	NewPin   string `json:"new_pin,omitempty"`
	Password string `json:"password,omitempty"`
}

// TopupRequest funds the wallet
type TopupRequest struct {
	Amount Amount `json:"amount"`
}

// WalletPaymentRequest pays a package or consolidation from the wallet
type WalletPaymentRequest struct {
	Pin               string `json:"pin"`
	ShippingAddressID ID     `json:"shipping_address_id"`
}

// PaymentResult is the generic response of the payment endpoints
type PaymentResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	NewBalance Amount `json:"new_balance,omitempty"`
}

// CreateOrderRequest starts a PayPal checkout
type CreateOrderRequest struct {
	PackageID         ID     `json:"package_id,omitempty"`
	ConsolidationID   ID     `json:"consolidation_id,omitempty"`
	ShippingAddressID ID     `json:"shipping_address_id"`
	Amount            Amount `json:"amount,omitempty"`
}

// CreateOrderResponse returns the order id and, when approval is needed, the PayPal URL
type CreateOrderResponse struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url,omitempty"`
	Status      string `json:"status,omitempty"`
}

// CaptureOrderRequest completes a PayPal checkout
type CaptureOrderRequest struct {
	OrderID string `json:"order_id"`
}

// CaptureOrderResponse is the capture outcome
type CaptureOrderResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Completed reports whether PayPal settled the order
func (r CaptureOrderResponse) Completed() bool {
	return r.Status == "COMPLETED" || r.Status == "completed" || r.Status == "success"
}
