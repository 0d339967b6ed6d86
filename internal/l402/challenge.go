// ABOUTME: Normalizes HTTP 402 payment challenges from headers or JSON bodies.
// ABOUTME: Every 402 becomes a complete PaymentChallenge, degraded if unparseable.

package l402

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// StatusPaymentRequired is the discriminator carried by payment challenges.
const StatusPaymentRequired = "payment_required"

// DefaultAmountSats is used when a challenge does not state its price.
const DefaultAmountSats int64 = 1000

// InvoiceStatusPath is appended to the backend base URL to poll an invoice.
const InvoiceStatusPath = "/invoice-status/"

const (
	messagePaymentRequired = "Free tier exhausted. Pay to continue using the routing service."
	messageDegraded        = "Payment required — could not parse invoice details."
)

// PaymentChallenge is the normalized form of a 402 response.
type PaymentChallenge struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Invoice     string `json:"invoice"`
	Macaroon    string `json:"macaroon"`
	PaymentHash string `json:"payment_hash"`
	PaymentURL  string `json:"payment_url"`
	AmountSats  int64  `json:"amount_sats"`

	// Degraded is set when the challenge could not be parsed and only
	// carries defaults.
	Degraded bool `json:"-"`
}

// paramPattern matches key="value" pairs in a WWW-Authenticate header.
var paramPattern = regexp.MustCompile(`([A-Za-z0-9_-]+)\s*=\s*"([^"]*)"`)

// ParseHeader parses a WWW-Authenticate value of the form
//
//	L402 macaroon="<token>", invoice="<bolt11>"
//
// Keys may appear in any order and unknown keys are ignored. The legacy LSAT
// scheme is accepted. It returns false when the scheme does not match or
// either the macaroon or the invoice is missing.
func ParseHeader(header, baseURL string) (PaymentChallenge, bool) {
	header = strings.TrimSpace(header)
	scheme, params, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, AuthScheme) && !strings.EqualFold(scheme, "LSAT") {
		return PaymentChallenge{}, false
	}

	values := make(map[string]string)
	for _, m := range paramPattern.FindAllStringSubmatch(params, -1) {
		key := strings.ToLower(m[1])
		if _, seen := values[key]; !seen {
			values[key] = m[2]
		}
	}

	macaroon, invoice := values["macaroon"], values["invoice"]
	if macaroon == "" || invoice == "" {
		return PaymentChallenge{}, false
	}

	return PaymentChallenge{
		Status:     StatusPaymentRequired,
		Message:    messagePaymentRequired,
		Invoice:    invoice,
		Macaroon:   macaroon,
		PaymentURL: InvoiceStatusURL(baseURL, ""),
		AmountSats: DefaultAmountSats,
	}, true
}

// ParseBody builds a challenge from a 402 response body. Missing or
// wrong-typed fields take their defaults without affecting the others. A body
// that is not valid JSON, or not a JSON object, yields a degraded challenge
// whose payment URL is the bare base URL.
func ParseBody(body []byte, baseURL string) PaymentChallenge {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return degraded(baseURL)
	}

	c := PaymentChallenge{
		Status:      StatusPaymentRequired,
		Message:     messagePaymentRequired,
		Invoice:     stringField(fields["invoice"]),
		Macaroon:    stringField(fields["macaroon"]),
		PaymentHash: stringField(fields["payment_hash"]),
		AmountSats:  amountField(fields["amount_sats"]),
	}
	c.PaymentURL = InvoiceStatusURL(baseURL, c.PaymentHash)
	return c
}

// stringField returns raw as a string, or "" when absent or not a string.
func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// amountField accepts a positive whole number written as an integer, a
// float such as 1000.0 or 2e3, or a numeric string. Anything else is
// DefaultAmountSats.
func amountField(raw json.RawMessage) int64 {
	var n json.Number
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return DefaultAmountSats
	}
	if v, err := n.Int64(); err == nil {
		if v > 0 {
			return v
		}
		return DefaultAmountSats
	}
	f, err := n.Float64()
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return DefaultAmountSats
	}
	return int64(f)
}

// MergeBody fills the payment hash and amount of a header-derived challenge
// from a 402 body. Invoice and macaroon from the header take precedence.
func (c PaymentChallenge) MergeBody(body []byte, baseURL string) PaymentChallenge {
	fromBody := ParseBody(body, baseURL)
	if fromBody.Degraded {
		return c
	}
	if fromBody.PaymentHash != "" {
		c.PaymentHash = fromBody.PaymentHash
		c.PaymentURL = InvoiceStatusURL(baseURL, c.PaymentHash)
	}
	c.AmountSats = fromBody.AmountSats
	return c
}

// InvoiceStatusURL returns the polling URL for a payment hash. The hash is
// omitted when empty.
func InvoiceStatusURL(baseURL, paymentHash string) string {
	return strings.TrimRight(baseURL, "/") + InvoiceStatusPath + paymentHash
}

func degraded(baseURL string) PaymentChallenge {
	return PaymentChallenge{
		Status:     StatusPaymentRequired,
		Message:    messageDegraded,
		PaymentURL: baseURL,
		AmountSats: DefaultAmountSats,
		Degraded:   true,
	}
}
