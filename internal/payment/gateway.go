package payment

import (
	"context"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/resources"
)

// Gateway is the set of API calls a payment needs
type Gateway interface {
	Wallet(ctx context.Context) (*models.Wallet, error)
	Addresses(ctx context.Context) ([]models.Address, error)
	ShippingOptions(ctx context.Context, packageID models.ID) ([]models.CourierOption, error)
	SelectCourier(ctx context.Context, packageID, courierID models.ID) (*models.SelectCourierResponse, error)
	PayFromWallet(ctx context.Context, target Target, req models.WalletPaymentRequest) (*models.PaymentResult, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*models.CaptureOrderResponse, error)
}

type resourceGateway struct {
	set *resources.Set
}

// NewGateway backs a Gateway with the API resource modules
func NewGateway(set *resources.Set) Gateway {
	return &resourceGateway{set: set}
}

func (g *resourceGateway) Wallet(ctx context.Context) (*models.Wallet, error) {
	return g.set.Payments.Wallet(ctx)
}

func (g *resourceGateway) Addresses(ctx context.Context) ([]models.Address, error) {
	return g.set.AddressBook.List(ctx)
}

func (g *resourceGateway) ShippingOptions(ctx context.Context, packageID models.ID) ([]models.CourierOption, error) {
	return g.set.Warehouse.ShippingOptions(ctx, packageID)
}

func (g *resourceGateway) SelectCourier(ctx context.Context, packageID, courierID models.ID) (*models.SelectCourierResponse, error) {
	return g.set.Warehouse.SelectCourier(ctx, packageID, courierID)
}

func (g *resourceGateway) PayFromWallet(ctx context.Context, target Target, req models.WalletPaymentRequest) (*models.PaymentResult, error) {
	if target.Kind == TargetConsolidation {
		return g.set.Payments.PayConsolidationFromWallet(ctx, target.ID, req)
	}
	return g.set.Payments.PayPackageFromWallet(ctx, target.ID, req)
}

func (g *resourceGateway) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	return g.set.Payments.CreateOrder(ctx, req)
}

func (g *resourceGateway) CaptureOrder(ctx context.Context, orderID string) (*models.CaptureOrderResponse, error) {
	return g.set.Payments.CaptureOrder(ctx, orderID)
}
