// Package resources exposes one typed module per GetMeThis API family. Every
// module is a thin wrapper that builds the path and body and leaves transport
// concerns to the API client.
package resources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vaidashi/getmethis-dashboard/internal/apiclient"
	"github.com/vaidashi/getmethis-dashboard/internal/models"
)

const apiPrefix = "/api/v1"

// API is the transport every resource module calls through
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
	Delete(ctx context.Context, path string) error
}

// Set groups every resource module over one API
type Set struct {
	Auth        *Auth
	Profile     *Profile
	AddressBook *AddressBook
	Warehouse   *Warehouse
	Shipping    *Shipping
	Payments    *Payments
	Compliance  *Compliance
	Deals       *Deals
	Couriers    *Couriers
}

// NewSet creates all resource modules
func NewSet(api API) *Set {
	return &Set{
		Auth:        &Auth{api: api},
		Profile:     &Profile{api: api},
		AddressBook: &AddressBook{api: api},
		Warehouse:   &Warehouse{api: api},
		Shipping:    &Shipping{api: api},
		Payments:    &Payments{api: api},
		Compliance:  &Compliance{api: api},
		Deals:       &Deals{api: api},
		Couriers:    &Couriers{api: api},
	}
}

func path(format string, args ...interface{}) string {
	return apiPrefix + fmt.Sprintf(format, args...)
}

func pageQuery(p string, page int) string {
	if page <= 1 {
		return p
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	return p + "?" + q.Encode()
}

func getList[T any](ctx context.Context, api API, p string) ([]T, error) {
	var list models.List[T]

	if err := api.Get(ctx, p, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Auth covers the login endpoints
type Auth struct {
	api API
}

// Login authenticates a customer. Any stored session is left out of the
// request, so bad credentials never read as an expired session.
func (a *Auth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse

	if err := a.api.Post(apiclient.Anonymous(ctx), path("/users/login/"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminLogin authenticates a staff user
func (a *Auth) AdminLogin(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse

	if err := a.api.Post(apiclient.Anonymous(ctx), path("/users/admin/login/"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile is the current user's profile
type Profile struct {
	api API
}

func (p *Profile) Get(ctx context.Context) (*models.User, error) {
	var user models.User

	if err := p.api.Get(ctx, path("/users/profile/"), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *Profile) Update(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User

	if err := p.api.Put(ctx, path("/users/profile/"), update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AddressBook is the user's saved shipping addresses
type AddressBook struct {
	api API
}

func (a *AddressBook) List(ctx context.Context) ([]models.Address, error) {
	return getList[models.Address](ctx, a.api, path("/users/address-book/"))
}

func (a *AddressBook) Get(ctx context.Context, id models.ID) (*models.Address, error) {
	var addr models.Address

	if err := a.api.Get(ctx, path("/users/address-book/%s/", url.PathEscape(id.String())), &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (a *AddressBook) Create(ctx context.Context, addr models.Address) (*models.Address, error) {
	var created models.Address

	if err := a.api.Post(ctx, path("/users/address-book/"), addr, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *AddressBook) Update(ctx context.Context, id models.ID, addr models.Address) (*models.Address, error) {
	var updated models.Address

	if err := a.api.Put(ctx, path("/users/address-book/%s/", url.PathEscape(id.String())), addr, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (a *AddressBook) Delete(ctx context.Context, id models.ID) error {
	return a.api.Delete(ctx, path("/users/address-book/%s/", url.PathEscape(id.String())))
}

// Compliance lists items that cannot be shipped
type Compliance struct {
	api API
}

func (c *Compliance) ProhibitedItems(ctx context.Context) ([]models.ComplianceItem, error) {
	return getList[models.ComplianceItem](ctx, c.api, path("/compliance/prohibited-items/"))
}

// Deals lists trending store deals
type Deals struct {
	api API
}

func (d *Deals) Trending(ctx context.Context) ([]models.Deal, error) {
	return getList[models.Deal](ctx, d.api, path("/deals/trending/"))
}

// Couriers lists the courier partners
type Couriers struct {
	api API
}

func (c *Couriers) Partners(ctx context.Context) ([]models.CourierPartner, error) {
	return getList[models.CourierPartner](ctx, c.api, path("/courier/partners/"))
}
