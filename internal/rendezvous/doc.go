// Package rendezvous provides the routing and venue-fairness tools exposed to
// agents: get_directions, get_isochrone, score_venues and
// store_routing_credentials.
//
// Every routing tool runs through the calling session's gateway. When the
// backend asks for payment the tool succeeds with a payment_required payload
// instead of failing, so the agent can pay the invoice, call
// store_routing_credentials and retry.
package rendezvous
