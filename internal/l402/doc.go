// Package l402 implements the client side of the L402 payment challenge.
//
// # Overview
//
// A metered backend answers HTTP 402 when a caller has exhausted its free
// tier. The challenge carries a macaroon and a Lightning invoice. Once the
// invoice is paid out of band, the macaroon and the payment preimage together
// authorize later requests:
//
//	Authorization: L402 <macaroon>:<preimage>
//
// # Challenges
//
// A challenge can arrive in two shapes, both normalized to PaymentChallenge:
//
//   - a WWW-Authenticate header: L402 macaroon="...", invoice="..." (ParseHeader)
//   - a JSON response body with invoice, macaroon, payment_hash and
//     amount_sats fields (ParseBody)
//
// A body that cannot be decoded still yields a PaymentChallenge, flagged as
// degraded, so callers always get structured data back.
//
// # Credentials
//
// CredentialStore holds at most one macaroon/preimage pair. It lives in a
// single session and is never persisted.
package l402
