package gateway

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/craftandcart/shopfront-backend/pkg/config"
	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
)

// Callback parameter names used by the gateway on the return leg.
const (
	paramToken     = "checkout_token"
	paramReference = "transaction_id"
	paramStatus    = "status"
	paramMessage   = "message"
	paramDigest    = "digest"
)

// PaymentRequest is the outbound redirect payload handed to the gateway.
type PaymentRequest struct {
	Endpoint string
	Fields   url.Values
}

// PaymentOutcome is the normalized result parsed from an inbound callback.
type PaymentOutcome struct {
	CheckoutToken        string
	GatewayTransactionID string
	Status               enums.OutcomeStatus
	RawResponseCode      string
	ErrorMessage         string
}

// Adapter translates between internal checkout state and the external
// gateway's wire format. It never creates orders or touches stock.
type Adapter struct {
	cfg    config.GatewayConfig
	digest DigestStrategy
}

// NewAdapter wires a gateway adapter from configuration.
func NewAdapter(cfg config.GatewayConfig) (*Adapter, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway merchant id required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway secret required")
	}
	strategy, err := NewDigestStrategy(cfg.DigestScheme)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, digest: strategy}, nil
}

// DigestScheme reports the active signing scheme.
func (a *Adapter) DigestScheme() string {
	return a.digest.Name()
}

// BuildPaymentRequest produces the signed redirect payload for a snapshot.
// The digest covers merchant id, token, amount, and currency in that fixed
// order.
func (a *Adapter) BuildPaymentRequest(snap *models.CartSnapshot) (*PaymentRequest, error) {
	if snap == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart snapshot required")
	}
	if snap.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot token required")
	}

	amount := formatAmount(snap.GrandTotalCents)
	currency := string(snap.Currency)
	if currency == "" {
		currency = a.cfg.Currency
	}

	fields := url.Values{}
	fields.Set("merchant_id", a.cfg.MerchantID)
	fields.Set(paramToken, snap.Token)
	fields.Set("amount", amount)
	fields.Set("currency", currency)
	fields.Set("return_url", a.cfg.ReturnURL)
	fields.Set("cancel_url", a.cfg.CancelURL)
	fields.Set(paramDigest, a.digest.Sign(a.cfg.Secret, []string{
		a.cfg.MerchantID,
		snap.Token,
		amount,
		currency,
	}))

	return &PaymentRequest{
		Endpoint: a.cfg.Endpoint,
		Fields:   fields,
	}, nil
}

// ParseCallback validates the digest on an inbound callback and normalizes
// it into a PaymentOutcome. Invalid signatures are a terminal failure, never
// treated as approved.
func (a *Adapter) ParseCallback(values url.Values) (*PaymentOutcome, error) {
	token := strings.TrimSpace(values.Get(paramToken))
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout token missing from callback")
	}
	rawStatus := strings.TrimSpace(values.Get(paramStatus))
	if rawStatus == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status missing from callback")
	}

	reference := strings.TrimSpace(values.Get(paramReference))
	digest := strings.TrimSpace(values.Get(paramDigest))
	signed := []string{token, reference, rawStatus}
	if !a.digest.Verify(a.cfg.Secret, signed, digest) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "payload signature invalid").
			WithDetails(map[string]any{"token": token})
	}

	return &PaymentOutcome{
		CheckoutToken:        token,
		GatewayTransactionID: reference,
		Status:               NormalizeStatus(rawStatus),
		RawResponseCode:      rawStatus,
		ErrorMessage:         strings.TrimSpace(values.Get(paramMessage)),
	}, nil
}

// SignCallback mirrors the gateway's signature on the return leg. Exposed for
// tests and local tooling that simulate callbacks.
func (a *Adapter) SignCallback(token, reference, rawStatus string) string {
	return a.digest.Sign(a.cfg.Secret, []string{token, reference, rawStatus})
}

func formatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
