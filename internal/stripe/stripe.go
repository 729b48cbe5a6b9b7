package stripe

import (
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceCents    int
	Currency      string
	FrontendURL   string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Configured reports whether a secret key is set. Checkout endpoints return
// an error instead of panicking when payments are not configured.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != ""
}

// WebhookConfigured reports whether the webhook signing secret is set.
func (c *Client) WebhookConfigured() bool {
	return c.cfg.WebhookSecret != ""
}

// PriceCents returns the configured export price.
func (c *Client) PriceCents() int {
	return c.cfg.PriceCents
}

// Currency returns the configured export currency code.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// CreateExportCheckoutSession creates a one-time payment checkout session for
// the export and returns its URL and session id. The export id rides along in
// metadata so the webhook can map the payment back to the purchase record.
func (c *Client) CreateExportCheckoutSession(exportID int64, interestName string, amountCents int, currency string) (string, string, error) {
	exportRef := strconv.FormatInt(exportID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(int64(amountCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Export: %s", interestName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(exportRef),
		SuccessURL:        stripe.String(c.cfg.FrontendURL + "/exports/" + exportRef + "?checkout=success"),
		CancelURL:         stripe.String(c.cfg.FrontendURL + "/exports/" + exportRef + "?checkout=canceled"),
	}
	params.AddMetadata("export_id", exportRef)

	sess, err := checksession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
