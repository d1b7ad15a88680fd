package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82/webhook"
)

var _ stripe.Gateway = (*FakeGateway)(nil)

// Gateway operations that support error injection
const (
	OpCreateProduct  = "create_product"
	OpCreatePrice    = "create_price"
	OpRetrievePrice  = "retrieve_price"
	OpFindPrice      = "find_price"
	OpCreateCustomer = "create_customer"
	OpRetrieveEvent  = "retrieve_event"
)

// FakeGateway is an in-memory processor. Signatures are checked with the real
// verification code so handler tests exercise the same failure modes.
type FakeGateway struct {
	mu        sync.Mutex
	products  map[string]map[string]string
	prices    map[string]*stripe.ExternalPrice
	customers map[string]string
	events    map[string]*payload.Event
	priceKeys map[string]string
	errs      map[string]error
	seq       int

	// Writes counts processor objects created through the gateway
	Writes    int
	Secret    string
	Tolerance time.Duration
	PingErr   error
}

func NewFakeGateway(secret string) *FakeGateway {
	return &FakeGateway{
		products:  make(map[string]map[string]string),
		prices:    make(map[string]*stripe.ExternalPrice),
		customers: make(map[string]string),
		events:    make(map[string]*payload.Event),
		priceKeys: make(map[string]string),
		errs:      make(map[string]error),
		Secret:    secret,
		Tolerance: 5 * time.Minute,
	}
}

// FailOn makes every call to op return err until cleared with a nil err
func (g *FakeGateway) FailOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, op)
		return
	}
	g.errs[op] = err
}

// SetPrice stores or replaces a processor price as is
func (g *FakeGateway) SetPrice(p *stripe.ExternalPrice) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *p
	g.prices[p.ID] = &cp
}

// Price returns a copy of a stored price
func (g *FakeGateway) Price(id string) (*stripe.ExternalPrice, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.prices[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// AddEvent makes an event retrievable by id
func (g *FakeGateway) AddEvent(ev *payload.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[ev.ID] = ev
}

// WriteCount returns how many processor objects have been created
func (g *FakeGateway) WriteCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Writes
}

func (g *FakeGateway) injected(op string) error {
	return g.errs[op]
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%04d", prefix, g.seq)
}

func (g *FakeGateway) CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpCreateProduct); err != nil {
		return "", err
	}
	id := g.nextID("prod")
	g.products[id] = lo.Assign(metadata)
	g.Writes++
	return id, nil
}

func (g *FakeGateway) CreatePrice(ctx context.Context, in stripe.CreatePriceInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpCreatePrice); err != nil {
		return "", err
	}
	if _, ok := g.products[in.ProductID]; !ok {
		return "", ierr.NewError("no such product").
			WithHint("Processor rejected the request").
			WithReportableDetails(map[string]any{"operation": OpCreatePrice}).
			Mark(ierr.ErrValidation)
	}

	// a repeated idempotency key replays the original price, whatever its state now
	key := in.IdempotencyKey()
	if id, ok := g.priceKeys[key]; ok {
		return id, nil
	}

	// lookup keys move to the newest price
	if in.LookupKey != "" {
		for _, p := range g.prices {
			if p.LookupKey == in.LookupKey {
				p.LookupKey = ""
			}
		}
	}

	id := g.nextID("price")
	g.prices[id] = &stripe.ExternalPrice{
		ID:        id,
		ProductID: in.ProductID,
		Amount:    in.Amount,
		Currency:  strings.ToLower(in.Currency),
		Interval:  in.Interval,
		Active:    true,
		LookupKey: in.LookupKey,
		Metadata:  lo.Assign(in.Metadata),
	}
	g.priceKeys[key] = id
	g.Writes++
	return id, nil
}

func (g *FakeGateway) RetrievePrice(ctx context.Context, id string) (*stripe.ExternalPrice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpRetrievePrice); err != nil {
		return nil, err
	}
	p, ok := g.prices[id]
	if !ok {
		return nil, priceNotFound(OpRetrievePrice)
	}
	cp := *p
	return &cp, nil
}

func (g *FakeGateway) FindPriceByLookupKey(ctx context.Context, key string) (*stripe.ExternalPrice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpFindPrice); err != nil {
		return nil, err
	}
	for _, p := range g.prices {
		if p.LookupKey == key && p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, priceNotFound(OpFindPrice)
}

func (g *FakeGateway) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpCreateCustomer); err != nil {
		return "", err
	}
	id := g.nextID("cus")
	g.customers[id] = userID
	g.Writes++
	return id, nil
}

// CustomerUser returns the user a processor customer was created for
func (g *FakeGateway) CustomerUser(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.customers[id]
}

func (g *FakeGateway) RetrieveEvent(ctx context.Context, id string) (*payload.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(OpRetrieveEvent); err != nil {
		return nil, err
	}
	ev, ok := g.events[id]
	if !ok {
		return nil, ierr.NewError("no such event").
			WithHint("Processor resource not found").
			WithReportableDetails(map[string]any{"operation": OpRetrieveEvent}).
			Mark(ierr.ErrNotFound)
	}
	return ev, nil
}

func (g *FakeGateway) VerifyAndParseEvent(body []byte, signatureHeader string) (*payload.Event, error) {
	if len(body) == 0 || signatureHeader == "" {
		return nil, ierr.NewError("webhook payload or signature header missing").
			WithHint("Missing webhook payload or signature").
			Mark(ierr.ErrValidation)
	}
	if !g.WebhookSecretConfigured() {
		return nil, ierr.NewError("webhook signing secret is not configured").
			WithHint("Webhook endpoint is not configured").
			Mark(ierr.ErrSystem)
	}
	if err := webhook.ValidatePayloadWithTolerance(body, signatureHeader, g.Secret, g.Tolerance); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrInvalidSignature)
	}
	return payload.ParseEvent(body)
}

func (g *FakeGateway) WebhookSecretConfigured() bool {
	return g.Secret != ""
}

func (g *FakeGateway) Ping(ctx context.Context) error {
	return g.PingErr
}

func priceNotFound(op string) error {
	return ierr.NewError("no such price").
		WithHint("Processor resource not found").
		WithReportableDetails(map[string]any{"operation": op}).
		Mark(ierr.ErrNotFound)
}

// SignPayload builds a processor signature header for body signed at ts
func SignPayload(secret string, body []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// ProcessorPrice builds a processor price linked to a plan
func ProcessorPrice(id, productID, planID string, amount int64, interval types.BillingInterval) *stripe.ExternalPrice {
	return &stripe.ExternalPrice{
		ID:        id,
		ProductID: productID,
		Amount:    amount,
		Currency:  types.DefaultCurrency,
		Interval:  interval,
		Active:    true,
		LookupKey: types.PlanLookupKey(planID),
		Metadata:  map[string]string{types.MetadataKeyLocalPlanID: planID},
	}
}
