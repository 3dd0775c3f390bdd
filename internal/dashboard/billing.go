package dashboard

import (
	"context"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
)

// Billing is the invoices and transactions page
type Billing struct {
	page
	deps         Deps
	invoices     *resource.Resource[models.Page[models.Invoice]]
	transactions *resource.Resource[models.Page[models.Transaction]]

	mu          sync.Mutex
	invoicePage int
	txPage      int
}

type BillingView struct {
	Invoices     models.Page[models.Invoice]     `json:"invoices"`
	Transactions models.Page[models.Transaction] `json:"transactions"`
	Loading      bool                            `json:"loading"`
}

func NewBilling(deps Deps) *Billing {
	b := &Billing{deps: deps, invoicePage: 1, txPage: 1}

	b.invoices = resource.New(resource.KeyInvoices, models.Page[models.Invoice]{}, func(ctx context.Context) (models.Page[models.Invoice], error) {
		p, err := deps.API.Payments.Invoices(ctx, b.pages().invoices)
		if err != nil {
			return models.Page[models.Invoice]{}, err
		}
		return *p, nil
	}, deps.Notifier, deps.Logger)
	b.transactions = resource.New(resource.KeyTransactions, models.Page[models.Transaction]{}, func(ctx context.Context) (models.Page[models.Transaction], error) {
		p, err := deps.API.Payments.Transactions(ctx, b.pages().transactions)
		if err != nil {
			return models.Page[models.Transaction]{}, err
		}
		return *p, nil
	}, deps.Notifier, deps.Logger)

	b.track(deps.Registry, b.invoices, b.transactions)
	return b
}

func (b *Billing) View() BillingView {
	inv := b.invoices.Snapshot()
	txs := b.transactions.Snapshot()

	return BillingView{
		Invoices:     inv.Data,
		Transactions: txs.Data,
		Loading:      inv.Loading || txs.Loading,
	}
}

// InvoicesPage switches the invoice list to page n
func (b *Billing) InvoicesPage(ctx context.Context, n int) error {
	b.mu.Lock()
	b.invoicePage = max(n, 1)
	b.mu.Unlock()

	return b.invoices.Load(ctx)
}

// TransactionsPage switches the transaction list to page n
func (b *Billing) TransactionsPage(ctx context.Context, n int) error {
	b.mu.Lock()
	b.txPage = max(n, 1)
	b.mu.Unlock()

	return b.transactions.Load(ctx)
}

// Invoice fetches one invoice
func (b *Billing) Invoice(ctx context.Context, id models.ID) (*models.Invoice, error) {
	return b.deps.API.Payments.Invoice(ctx, id)
}

type billingPages struct {
	invoices     int
	transactions int
}

func (b *Billing) pages() billingPages {
	b.mu.Lock()
	defer b.mu.Unlock()

	return billingPages{invoices: b.invoicePage, transactions: b.txPage}
}

// PaymentSuccess is the PayPal return route
type PaymentSuccess struct {
	deps Deps
}

func NewPaymentSuccess(deps Deps) *PaymentSuccess {
	return &PaymentSuccess{deps: deps}
}

// Complete captures the approved order. An empty orderID falls back to the
// order remembered when it was created.
func (p *PaymentSuccess) Complete(ctx context.Context, orderID string) (payment.Resolved, error) {
	state, err := p.deps.Flow.Capture(ctx, orderID)
	if err != nil {
		return payment.Resolved{}, err
	}

	resolved, _ := state.(payment.Resolved)
	return resolved, nil
}
