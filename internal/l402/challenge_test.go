// ABOUTME: Tests for 402 challenge normalization.
// ABOUTME: Covers header parsing, body parsing, defaults, and degraded bodies.

package l402

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://routing.example.com"

func TestParseHeader(t *testing.T) {
	t.Run("parses macaroon and invoice", func(t *testing.T) {
		c, ok := ParseHeader(`L402 macaroon="mac123", invoice="inv456"`, testBaseURL)
		require.True(t, ok)
		assert.Equal(t, "mac123", c.Macaroon)
		assert.Equal(t, "inv456", c.Invoice)
		assert.Equal(t, StatusPaymentRequired, c.Status)
		assert.Empty(t, c.PaymentHash)
		assert.Equal(t, DefaultAmountSats, c.AmountSats)
		assert.Equal(t, testBaseURL+"/invoice-status/", c.PaymentURL)
		assert.False(t, c.Degraded)
	})

	t.Run("order insensitive and ignores unknown keys", func(t *testing.T) {
		c, ok := ParseHeader(`L402 version="0", invoice="lnbc1", realm="x", macaroon="AgE="`, testBaseURL)
		require.True(t, ok)
		assert.Equal(t, "AgE=", c.Macaroon)
		assert.Equal(t, "lnbc1", c.Invoice)
	})

	t.Run("accepts legacy LSAT scheme", func(t *testing.T) {
		_, ok := ParseHeader(`LSAT macaroon="m", invoice="i"`, testBaseURL)
		assert.True(t, ok)
	})

	rejects := map[string]string{
		"missing invoice":  `L402 macaroon="mac123"`,
		"missing macaroon": `L402 invoice="inv456"`,
		"empty macaroon":   `L402 macaroon="", invoice="inv456"`,
		"wrong scheme":     `Bearer macaroon="mac123", invoice="inv456"`,
		"empty header":     ``,
	}
	for name, header := range rejects {
		t.Run("rejects "+name, func(t *testing.T) {
			_, ok := ParseHeader(header, testBaseURL)
			assert.False(t, ok)
		})
	}
}

func TestParseBody(t *testing.T) {
	t.Run("full body", func(t *testing.T) {
		body := `{"invoice":"lnbc10u1p...","macaroon":"mac","payment_hash":"hash","amount_sats":1000}`
		c := ParseBody([]byte(body), testBaseURL)

		assert.Equal(t, "lnbc10u1p...", c.Invoice)
		assert.Equal(t, "mac", c.Macaroon)
		assert.Equal(t, "hash", c.PaymentHash)
		assert.Equal(t, int64(1000), c.AmountSats)
		assert.Equal(t, testBaseURL+"/invoice-status/hash", c.PaymentURL)
		assert.Equal(t, StatusPaymentRequired, c.Status)
		assert.False(t, c.Degraded)
	})

	t.Run("missing fields take defaults", func(t *testing.T) {
		c := ParseBody([]byte(`{}`), testBaseURL)

		assert.Empty(t, c.Invoice)
		assert.Empty(t, c.Macaroon)
		assert.Empty(t, c.PaymentHash)
		assert.Equal(t, DefaultAmountSats, c.AmountSats)
		assert.Equal(t, testBaseURL+"/invoice-status/", c.PaymentURL)
		assert.False(t, c.Degraded)
	})

	t.Run("custom amount", func(t *testing.T) {
		c := ParseBody([]byte(`{"amount_sats":250}`), testBaseURL)
		assert.Equal(t, int64(250), c.AmountSats)
	})

	t.Run("non-positive amount falls back to default", func(t *testing.T) {
		c := ParseBody([]byte(`{"amount_sats":0}`), testBaseURL)
		assert.Equal(t, DefaultAmountSats, c.AmountSats)
	})

	amounts := []struct {
		name string
		raw  string
		want int64
	}{
		{"float with zero fraction", `1000.0`, 1000},
		{"exponent", `2e3`, 2000},
		{"numeric string", `"1000"`, 1000},
		{"fractional", `1000.5`, DefaultAmountSats},
		{"negative", `-5`, DefaultAmountSats},
		{"non-numeric string", `"lots"`, DefaultAmountSats},
		{"null", `null`, DefaultAmountSats},
		{"object", `{"sats":5}`, DefaultAmountSats},
	}
	for _, tc := range amounts {
		t.Run("amount "+tc.name, func(t *testing.T) {
			body := `{"invoice":"lnbc1","macaroon":"mac","amount_sats":` + tc.raw + `}`
			c := ParseBody([]byte(body), testBaseURL)

			assert.False(t, c.Degraded)
			assert.Equal(t, tc.want, c.AmountSats)
			assert.Equal(t, "lnbc1", c.Invoice)
			assert.Equal(t, "mac", c.Macaroon)
		})
	}

	t.Run("wrong-typed field defaults alone", func(t *testing.T) {
		c := ParseBody([]byte(`{"invoice":42,"macaroon":"mac","payment_hash":"h","amount_sats":7}`), testBaseURL)

		assert.False(t, c.Degraded)
		assert.Empty(t, c.Invoice)
		assert.Equal(t, "mac", c.Macaroon)
		assert.Equal(t, "h", c.PaymentHash)
		assert.Equal(t, int64(7), c.AmountSats)
	})

	t.Run("trailing slash on base URL", func(t *testing.T) {
		c := ParseBody([]byte(`{"payment_hash":"abc"}`), testBaseURL+"/")
		assert.Equal(t, testBaseURL+"/invoice-status/abc", c.PaymentURL)
	})

	for name, body := range map[string]string{
		"plain text":  "Payment Required",
		"empty":       "",
		"json null":   `null`,
		"json array":  `["lnbc"]`,
		"json string": `"lnbc"`,
		"json number": `42`,
	} {
		t.Run("degraded on "+name, func(t *testing.T) {
			c := ParseBody([]byte(body), testBaseURL)

			assert.True(t, c.Degraded)
			assert.Equal(t, StatusPaymentRequired, c.Status)
			assert.Empty(t, c.Invoice)
			assert.Empty(t, c.Macaroon)
			assert.Empty(t, c.PaymentHash)
			assert.Equal(t, testBaseURL, c.PaymentURL)
			assert.Equal(t, DefaultAmountSats, c.AmountSats)
			assert.Contains(t, c.Message, "could not parse invoice details")
		})
	}
}

func TestMergeBody(t *testing.T) {
	header, ok := ParseHeader(`L402 macaroon="hmac", invoice="hinv"`, testBaseURL)
	require.True(t, ok)

	t.Run("fills hash and amount from body", func(t *testing.T) {
		c := header.MergeBody([]byte(`{"macaroon":"bmac","payment_hash":"h1","amount_sats":42}`), testBaseURL)
		assert.Equal(t, "hmac", c.Macaroon)
		assert.Equal(t, "hinv", c.Invoice)
		assert.Equal(t, "h1", c.PaymentHash)
		assert.Equal(t, int64(42), c.AmountSats)
		assert.Equal(t, testBaseURL+"/invoice-status/h1", c.PaymentURL)
	})

	t.Run("keeps header challenge on unparseable body", func(t *testing.T) {
		c := header.MergeBody([]byte("nope"), testBaseURL)
		assert.Equal(t, header, c)
	})
}
