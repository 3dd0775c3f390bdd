package resources

import (
	"context"
	"errors"
	"net/url"

	"github.com/vaidashi/getmethis-dashboard/internal/apiclient"
	"github.com/vaidashi/getmethis-dashboard/internal/models"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// Warehouse covers packages held in the user's suite
type Warehouse struct {
	api API
}

func (w *Warehouse) Packages(ctx context.Context) ([]models.Package, error) {
	return getList[models.Package](ctx, w.api, path("/warehouse/packages/"))
}

func (w *Warehouse) Services(ctx context.Context) ([]models.WarehouseService, error) {
	return getList[models.WarehouseService](ctx, w.api, path("/warehouse/services/"))
}

func (w *Warehouse) CreateServiceRequest(ctx context.Context, req models.ServiceRequest) (*models.ServiceRequest, error) {
	var created models.ServiceRequest

	if err := w.api.Post(ctx, path("/warehouse/service-requests/"), req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ShippingOptions lists the couriers that can carry a package
func (w *Warehouse) ShippingOptions(ctx context.Context, packageID models.ID) ([]models.CourierOption, error) {
	return getList[models.CourierOption](ctx, w.api, path("/warehouse/packages/%s/shipping-options/", url.PathEscape(packageID.String())))
}

type selectCourierRequest struct {
	CourierID models.ID `json:"courier_id"`
}

// SelectCourier records the courier for a package and returns the
// server-confirmed total due
func (w *Warehouse) SelectCourier(ctx context.Context, packageID, courierID models.ID) (*models.SelectCourierResponse, error) {
	var resp models.SelectCourierResponse

	p := path("/warehouse/packages/%s/select-courier/", url.PathEscape(packageID.String()))
	if err := w.api.Post(ctx, p, selectCourierRequest{CourierID: courierID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shipping covers consolidations, shipments and rate quotes
type Shipping struct {
	api API
}

func (s *Shipping) Consolidations(ctx context.Context) ([]models.Consolidation, error) {
	return getList[models.Consolidation](ctx, s.api, path("/shipping/consolidations/"))
}

func (s *Shipping) CreateConsolidation(ctx context.Context, req models.ConsolidateRequest) (*models.Consolidation, error) {
	var created models.Consolidation

	if err := s.api.Post(ctx, path("/shipping/consolidations/"), req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Consolidate bundles packages into one outbound shipment. At least two
// packages are required.
func (s *Shipping) Consolidate(ctx context.Context, packageIDs []models.ID, notes string) (*models.Consolidation, error) {
	if len(packageIDs) < 2 {
		return nil, apperrors.NewBusinessError(apperrors.ErrTooFewPackages, "Select at least two packages to consolidate")
	}

	var created models.Consolidation

	req := models.ConsolidateRequest{PackageIDs: packageIDs, Notes: notes}
	if err := s.api.Post(ctx, path("/shipping/consolidate/"), req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Shipping) Shipments(ctx context.Context) ([]models.Shipment, error) {
	return getList[models.Shipment](ctx, s.api, path("/shipping/shipments/"))
}

func (s *Shipping) Shipment(ctx context.Context, id models.ID) (*models.Shipment, error) {
	var shipment models.Shipment

	if err := s.api.Get(ctx, path("/shipping/shipments/%s/", url.PathEscape(id.String())), &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (s *Shipping) StatusChoices(ctx context.Context) ([]models.StatusChoice, error) {
	return getList[models.StatusChoice](ctx, s.api, path("/shipping/status-choices/"))
}

// CalculateRates asks for carrier quotes. If the rates endpoint fails for any
// reason other than cancellation or an expired session, the simpler cost
// calculator is asked instead. A server error on the rates endpoint raises no
// notification of its own since the fallback may still answer.
func (s *Shipping) CalculateRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	var quotes models.List[models.RateQuote]

	err := s.api.Post(apiclient.QuietServerErrors(ctx), path("/shipping/calculate-rates/"), req, &quotes)
	if err == nil {
		return quotes, nil
	}

	if apperrors.IsCancelled(err) || errors.Is(err, apperrors.ErrSessionExpired) {
		return nil, err
	}

	quotes = nil
	if fallbackErr := s.api.Post(ctx, path("/shipping/cost-calculator/"), req, &quotes); fallbackErr != nil {
		return nil, fallbackErr
	}
	return quotes, nil
}
