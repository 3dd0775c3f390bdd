package dashboard

import (
	"context"
	"strings"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// ChooseCarrier lists the courier partners
type ChooseCarrier struct {
	page
	partners *resource.Resource[[]models.CourierPartner]
}

func NewChooseCarrier(deps Deps) *ChooseCarrier {
	c := &ChooseCarrier{}

	c.partners = resource.New("courier_partners", []models.CourierPartner{}, deps.API.Couriers.Partners, deps.Notifier, deps.Logger).
		WithLabel("courier partners")

	c.track(deps.Registry, c.partners)
	return c
}

func (c *ChooseCarrier) View() resource.Snapshot[[]models.CourierPartner] {
	return c.partners.Snapshot()
}

// Trending lists trending store deals
type Trending struct {
	page
	deals *resource.Resource[[]models.Deal]
}

func NewTrending(deps Deps) *Trending {
	t := &Trending{}

	t.deals = resource.New("trending_deals", []models.Deal{}, deps.API.Deals.Trending, deps.Notifier, deps.Logger).
		WithLabel("trending deals")

	t.track(deps.Registry, t.deals)
	return t
}

func (t *Trending) View() resource.Snapshot[[]models.Deal] {
	return t.deals.Snapshot()
}

// ShippingCalculator quotes shipping rates for a parcel
type ShippingCalculator struct {
	deps Deps

	mu     sync.Mutex
	last   models.RateRequest
	quotes []models.RateQuote
}

type CalculatorView struct {
	Request models.RateRequest `json:"request"`
	Quotes  []models.RateQuote `json:"quotes"`
}

func NewShippingCalculator(deps Deps) *ShippingCalculator {
	return &ShippingCalculator{deps: deps}
}

// Calculate validates req and asks for quotes
func (c *ShippingCalculator) Calculate(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	fields := make(map[string][]string)

	if strings.TrimSpace(req.DestinationCountry) == "" {
		fields["destination_country"] = []string{"This field is required."}
	}
	if req.Weight <= 0 {
		fields["weight"] = []string{"Enter a weight greater than zero."}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid rate request", fields)
	}

	quotes, err := c.deps.API.Shipping.CalculateRates(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.last, c.quotes = req, quotes
	c.mu.Unlock()

	return quotes, nil
}

func (c *ShippingCalculator) View() CalculatorView {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CalculatorView{Request: c.last, Quotes: c.quotes}
}

// Reset forgets the last quotes
func (c *ShippingCalculator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last, c.quotes = models.RateRequest{}, nil
}
