// ABOUTME: JSON Schemas advertised for the rendezvous tools.
// ABOUTME: Kept in step with the validate tags on the input structs.

package rendezvous

const pointSchema = `{"type":"object","properties":{` +
	`"lat":{"type":"number","minimum":-90,"maximum":90,"description":"Latitude"},` +
	`"lon":{"type":"number","minimum":-180,"maximum":180,"description":"Longitude"}},` +
	`"required":["lat","lon"]`

const transportModeSchema = `{"type":"string","enum":["drive","cycle","walk"],"description":"Travel mode"}`

const directionsSchema = `{"type":"object","properties":{` +
	`"from":` + pointSchema + `,"description":"Starting point"},` +
	`"to":` + pointSchema + `,"description":"Destination point"},` +
	`"transport_mode":` + transportModeSchema + `},` +
	`"required":["from","to","transport_mode"]}`

const isochroneSchema = `{"type":"object","properties":{` +
	`"lat":{"type":"number","minimum":-90,"maximum":90,"description":"Latitude of starting point"},` +
	`"lon":{"type":"number","minimum":-180,"maximum":180,"description":"Longitude of starting point"},` +
	`"transport_mode":` + transportModeSchema + `,` +
	`"time_minutes":{"type":"number","minimum":1,"maximum":120,"description":"Maximum travel time in minutes"}},` +
	`"required":["lat","lon","transport_mode","time_minutes"]}`

// fairness is deliberately not an enum: unknown strategies fall back to
// min_max.
const scoreVenuesSchema = `{"type":"object","properties":{` +
	`"participants":{"type":"array","minItems":2,"maxItems":10,"description":"Participant locations (2-10 people)",` +
	`"items":{"type":"object","properties":{` +
	`"lat":{"type":"number","minimum":-90,"maximum":90,"description":"Latitude"},` +
	`"lon":{"type":"number","minimum":-180,"maximum":180,"description":"Longitude"},` +
	`"label":{"type":"string","description":"Name or label (e.g. \"Alice\")"}},` +
	`"required":["lat","lon"]}},` +
	`"venues":{"type":"array","minItems":1,"maxItems":50,"description":"Candidate venues to score (1-50)",` +
	`"items":{"type":"object","properties":{` +
	`"lat":{"type":"number","minimum":-90,"maximum":90,"description":"Latitude"},` +
	`"lon":{"type":"number","minimum":-180,"maximum":180,"description":"Longitude"},` +
	`"name":{"type":"string","description":"Venue name"},` +
	`"type":{"type":"string","description":"Venue type (pub, cafe, restaurant, park, etc.)"}},` +
	`"required":["lat","lon","name"]}},` +
	`"transport_mode":{"type":"string","enum":["drive","cycle","walk"],"description":"How participants will travel"},` +
	`"fairness":{"type":"string","description":"Scoring strategy: min_max (default, minimise longest journey), ` +
	`min_total (minimise total travel), min_variance (equalise travel times)"}},` +
	`"required":["participants","venues","transport_mode"]}`

const storeCredentialsSchema = `{"type":"object","properties":{` +
	`"macaroon":{"type":"string","minLength":1,"description":"The macaroon from the payment_required response"},` +
	`"preimage":{"type":"string","minLength":1,"description":"The payment preimage obtained after paying the invoice"}},` +
	`"required":["macaroon","preimage"]}`
