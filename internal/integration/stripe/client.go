package stripe

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/idempotency"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/stripe/stripe-go/v82"
	"golang.org/x/time/rate"
)

// Client implements Gateway on top of the processor API
type Client struct {
	api           *stripe.Client
	webhookSecret string
	tolerance     time.Duration
	limiter       *rate.Limiter
	keys          *idempotency.Generator
	logger        *logger.Logger
}

// NewClient creates a processor client. Retries happen in the HTTP transport
// and only for connection failures, 429 and 5xx responses.
func NewClient(cfg *config.Configuration, log *logger.Logger) *Client {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        newHTTPClient(cfg.Stripe, log),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     log,
	}
	if cfg.Stripe.APIBaseURL != "" {
		backendCfg.URL = stripe.String(cfg.Stripe.APIBaseURL)
	}

	limit := rate.Inf
	burst := 1
	if cfg.Stripe.RateLimit > 0 {
		limit = rate.Limit(cfg.Stripe.RateLimit)
		burst = max(1, int(cfg.Stripe.RateLimit))
	}

	tolerance := cfg.Stripe.SignatureTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}

	return &Client{
		api:           stripe.NewClient(cfg.Stripe.SecretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg))),
		webhookSecret: cfg.Stripe.WebhookSecret,
		tolerance:     tolerance,
		limiter:       rate.NewLimiter(limit, burst),
		keys:          idempotency.NewGenerator(),
		logger:        log,
	}
}

func newHTTPClient(cfg config.StripeConfig, log *logger.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	// hand the final response back so the processor error body can be decoded
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{log}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	return rc.StandardClient()
}

func (c *Client) CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.ProductCreateParams{
		Name: stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(c.keys.GenerateKey(idempotency.ScopeProduct, keyParams(metadata, map[string]interface{}{
		"name": name,
	})))

	product, err := c.api.V1Products.Create(ctx, params)
	if err != nil {
		return "", c.translate(err, "create_product")
	}

	c.logger.Infow("created processor product",
		"product_id", product.ID,
		"local_plan_id", metadata[types.MetadataKeyLocalPlanID],
	)
	return product.ID, nil
}

func (c *Client) CreatePrice(ctx context.Context, in CreatePriceInput) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.PriceCreateParams{
		Product:    stripe.String(in.ProductID),
		UnitAmount: stripe.Int64(in.Amount),
		Currency:   stripe.String(in.Currency),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(string(in.Interval)),
		},
	}
	if in.LookupKey != "" {
		params.LookupKey = stripe.String(in.LookupKey)
		// moves the key off an archived or mismatched price of the same plan
		params.TransferLookupKey = stripe.Bool(true)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(in.IdempotencyKey())

	price, err := c.api.V1Prices.Create(ctx, params)
	if err != nil {
		return "", c.translate(err, "create_price")
	}

	c.logger.Infow("created processor price",
		"price_id", price.ID,
		"product_id", in.ProductID,
		"amount", in.Amount,
		"currency", in.Currency,
		"interval", in.Interval,
		"supersedes", in.Supersedes,
	)
	return price.ID, nil
}

func (c *Client) RetrievePrice(ctx context.Context, id string) (*ExternalPrice, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	price, err := c.api.V1Prices.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, c.translate(err, "retrieve_price")
	}
	return toExternalPrice(price), nil
}

func (c *Client) FindPriceByLookupKey(ctx context.Context, key string) (*ExternalPrice, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{key}),
	}
	for price, err := range c.api.V1Prices.List(ctx, params) {
		if err != nil {
			return nil, c.translate(err, "list_prices")
		}
		return toExternalPrice(price), nil
	}

	return nil, ierr.NewError("no processor price carries the lookup key").
		WithHint("Processor price not found").
		WithReportableDetails(map[string]any{
			"lookup_key": key,
		}).
		Mark(ierr.ErrNotFound)
}

func (c *Client) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata(types.MetadataKeyUserID, userID)
	params.SetIdempotencyKey(c.keys.GenerateKey(idempotency.ScopeCustomer, map[string]interface{}{
		"user_id": userID,
	}))

	customer, err := c.api.V1Customers.Create(ctx, params)
	if err != nil {
		return "", c.translate(err, "create_customer")
	}

	c.logger.Infow("created processor customer",
		"customer_id", customer.ID,
		"user_id", userID,
	)
	return customer.ID, nil
}

// RetrieveEvent fetches an event from the processor API. Events obtained this
// way are authenticated by the API credentials rather than a signature.
func (c *Client) RetrieveEvent(ctx context.Context, id string) (*payload.Event, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	event, err := c.api.V1Events.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, c.translate(err, "retrieve_event")
	}

	var object []byte
	if event.Data != nil {
		object = event.Data.Raw
	}
	return payload.NewEvent(event.ID, string(event.Type), event.Created, event.Livemode, object)
}

// Ping checks that the processor answers an authenticated request
func (c *Client) Ping(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	params := &stripe.PriceListParams{}
	params.Limit = stripe.Int64(1)
	for _, err := range c.api.V1Prices.List(ctx, params) {
		if err != nil {
			return c.translate(err, "ping")
		}
		break
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Payment processor request was cancelled").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// translate maps processor failures into the internal taxonomy. The
// processor message is logged and never placed in reportable details.
func (c *Client) translate(err error, op string) error {
	var stripeErr *stripe.Error
	if !ierr.As(err, &stripeErr) {
		c.logger.Errorw("processor request failed", "operation", op, "error", err)
		return ierr.WithError(err).
			WithHint("Payment processor is unreachable").
			WithReportableDetails(map[string]any{
				"operation": op,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Warnw("processor rejected request",
		"operation", op,
		"status", stripeErr.HTTPStatusCode,
		"code", stripeErr.Code,
		"type", stripeErr.Type,
		"request_id", stripeErr.RequestID,
		"message", stripeErr.Msg,
	)

	b := ierr.WithError(err).WithReportableDetails(map[string]any{
		"operation": op,
	})
	switch status := stripeErr.HTTPStatusCode; {
	case status == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return b.WithHint("Payment processor resource not found").Mark(ierr.ErrNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return b.WithHint("Payment processor credentials were rejected").Mark(ierr.ErrPermissionDenied)
	case status == http.StatusTooManyRequests:
		return b.WithHint("Payment processor is rate limiting requests").Mark(ierr.ErrHTTPClient)
	case status >= 400 && status < 500:
		return b.WithHint("Payment processor rejected the request").Mark(ierr.ErrValidation)
	default:
		return b.WithHint("Payment processor is unavailable").Mark(ierr.ErrHTTPClient)
	}
}

func toExternalPrice(p *stripe.Price) *ExternalPrice {
	out := &ExternalPrice{
		ID:        p.ID,
		Amount:    p.UnitAmount,
		Currency:  string(p.Currency),
		Active:    p.Active,
		LookupKey: p.LookupKey,
		Metadata:  p.Metadata,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = types.BillingInterval(p.Recurring.Interval)
	}
	return out
}

func keyParams(metadata map[string]string, extra map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(metadata)+len(extra))
	for k, v := range metadata {
		params["metadata."+k] = v
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// retryLogger adapts the service logger to the transport's leveled logger
type retryLogger struct {
	l *logger.Logger
}

func (r retryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.l.Errorw(msg, keysAndValues...)
}

func (r retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.l.Warnw(msg, keysAndValues...)
}

func (r retryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.l.Debugw(msg, keysAndValues...)
}

func (r retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.l.Debugw(msg, keysAndValues...)
}
