// Package routing defines the travel-routing domain and the authorizing
// gateway in front of a metered routing backend.
//
// Gateway wraps a Backend. Every call carries the session's stored L402
// credential (if any) in the context, and every HTTP 402 from the backend is
// converted into an l402.PaymentChallenge inside a Result instead of an error:
//
//	res, err := gw.Matrix(ctx, origins, destinations, routing.ModeWalk)
//	if err != nil {
//		return err // upstream failure, unchanged
//	}
//	if res.Status == routing.StatusPaymentRequired {
//		return res.Challenge
//	}
//	use(res.Value)
package routing
