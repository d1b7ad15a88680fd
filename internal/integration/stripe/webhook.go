package stripe

import (
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader carries the processor's webhook signature
const SignatureHeader = "Stripe-Signature"

// VerifyAndParseEvent authenticates a webhook body against the signing secret
// and decodes its envelope. Every signature failure is ErrInvalidSignature with
// the same hint, whatever the underlying reason.
func (c *Client) VerifyAndParseEvent(body []byte, signatureHeader string) (*payload.Event, error) {
	if len(body) == 0 || signatureHeader == "" {
		return nil, ierr.NewError("webhook payload or signature header missing").
			WithHint("Missing webhook payload or signature").
			Mark(ierr.ErrValidation)
	}
	if !c.WebhookSecretConfigured() {
		return nil, ierr.NewError("webhook signing secret is not configured").
			WithHint("Webhook endpoint is not configured").
			Mark(ierr.ErrSystem)
	}

	if err := webhook.ValidatePayloadWithTolerance(body, signatureHeader, c.webhookSecret, c.tolerance); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrInvalidSignature)
	}

	return payload.ParseEvent(body)
}

func (c *Client) WebhookSecretConfigured() bool {
	return c.webhookSecret != ""
}
