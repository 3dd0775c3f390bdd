package resources

import (
	"context"
	"net/url"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
)

// Payments covers the wallet, PayPal orders and invoices
type Payments struct {
	api API
}

func (p *Payments) Wallet(ctx context.Context) (*models.Wallet, error) {
	var wallet models.Wallet

	if err := p.api.Get(ctx, path("/payments/wallet/"), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (p *Payments) Balance(ctx context.Context) (*models.Wallet, error) {
	var wallet models.Wallet

	if err := p.api.Get(ctx, path("/payments/wallet/balance/"), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (p *Payments) HasPin(ctx context.Context) (bool, error) {
	var resp models.HasPinResponse

	if err := p.api.Get(ctx, path("/payments/wallet/has-pin/"), &resp); err != nil {
		return false, err
	}
	return resp.HasPin, nil
}

func (p *Payments) SetPin(ctx context.Context, pin string) error {
	return p.api.Post(ctx, path("/payments/wallet/set-pin/"), models.PinRequest{Pin: pin}, nil)
}

func (p *Payments) UpdatePin(ctx context.Context, oldPin, newPin string) error {
	return p.api.Post(ctx, path("/payments/wallet/update-pin/"), models.PinRequest{OldPin: oldPin, NewPin: newPin}, nil)
}

// ResetPin replaces a forgotten PIN after re-entering the account password
func (p *Payments) ResetPin(ctx context.Context, password, newPin string) error {
	return p.api.Post(ctx, path("/payments/wallet/reset-pin/"), models.PinRequest{Password: password, NewPin: newPin}, nil)
}

func (p *Payments) Topup(ctx context.Context, amount models.Amount) (*models.PaymentResult, error) {
	var result models.PaymentResult

	if err := p.api.Post(ctx, path("/payments/wallet/topup/"), models.TopupRequest{Amount: amount}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Payments) Transactions(ctx context.Context, page int) (*models.Page[models.Transaction], error) {
	var result models.Page[models.Transaction]

	if err := p.api.Get(ctx, pageQuery(path("/payments/wallet/transactions/"), page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Payments) PayPackageFromWallet(ctx context.Context, packageID models.ID, req models.WalletPaymentRequest) (*models.PaymentResult, error) {
	var result models.PaymentResult

	if err := p.api.Post(ctx, path("/payments/packages/%s/pay-from-wallet/", url.PathEscape(packageID.String())), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Payments) PayConsolidationFromWallet(ctx context.Context, consolidationID models.ID, req models.WalletPaymentRequest) (*models.PaymentResult, error) {
	var result models.PaymentResult

	if err := p.api.Post(ctx, path("/payments/consolidations/%s/pay-from-wallet/", url.PathEscape(consolidationID.String())), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateOrder opens a PayPal order and returns its approval URL
func (p *Payments) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	var resp models.CreateOrderResponse

	if err := p.api.Post(ctx, path("/payments/orders/create/"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *Payments) CaptureOrder(ctx context.Context, orderID string) (*models.CaptureOrderResponse, error) {
	var resp models.CaptureOrderResponse

	if err := p.api.Post(ctx, path("/payments/orders/capture/"), models.CaptureOrderRequest{OrderID: orderID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *Payments) Invoices(ctx context.Context, page int) (*models.Page[models.Invoice], error) {
	var result models.Page[models.Invoice]

	if err := p.api.Get(ctx, pageQuery(path("/payments/invoices/"), page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Payments) Invoice(ctx context.Context, id models.ID) (*models.Invoice, error) {
	var invoice models.Invoice

	if err := p.api.Get(ctx, path("/payments/invoices/%s/", url.PathEscape(id.String())), &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}
