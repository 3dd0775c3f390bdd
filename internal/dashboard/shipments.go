package dashboard

import (
	"context"
	"strings"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
)

// Shipments is the outbound shipments page
type Shipments struct {
	page
	deps      Deps
	shipments *resource.Resource[[]models.Shipment]
	choices   *resource.Resource[[]models.StatusChoice]
}

type ShipmentsView struct {
	Shipments     []models.Shipment     `json:"shipments"`
	StatusChoices []models.StatusChoice `json:"status_choices"`
	Loading       bool                  `json:"loading"`
}

func NewShipments(deps Deps) *Shipments {
	s := &Shipments{deps: deps}

	s.shipments = resource.New(resource.KeyShipments, []models.Shipment{}, deps.API.Shipping.Shipments, deps.Notifier, deps.Logger)
	s.choices = resource.New("status_choices", []models.StatusChoice{}, deps.API.Shipping.StatusChoices, deps.Notifier, deps.Logger).
		WithLabel("shipment statuses")

	s.track(deps.Registry, s.shipments, s.choices)
	return s
}

// View lists shipments whose status matches status; "" or "all" matches any.
// Legacy status spellings are normalised before comparing.
func (s *Shipments) View(status string) ShipmentsView {
	shipments := s.shipments.Snapshot()
	choices := s.choices.Snapshot()

	return ShipmentsView{
		Shipments:     FilterShipments(shipments.Data, status),
		StatusChoices: choices.Data,
		Loading:       shipments.Loading || choices.Loading,
	}
}

// Detail fetches one shipment
func (s *Shipments) Detail(ctx context.Context, id models.ID) (*models.Shipment, error) {
	return s.deps.API.Shipping.Shipment(ctx, id)
}

// FilterShipments keeps shipments in the given status
func FilterShipments(shipments []models.Shipment, status string) []models.Shipment {
	status = strings.TrimSpace(status)
	if status == "" || strings.EqualFold(status, "all") {
		return shipments
	}

	want := models.NormalizeShipmentStatus(status)
	out := make([]models.Shipment, 0, len(shipments))
	for _, sh := range shipments {
		if sh.CanonicalStatus() == want {
			out = append(out, sh)
		}
	}
	return out
}
