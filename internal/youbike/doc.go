// Package youbike is a small HTTP client for the public YouBike 2.0 API.
//
// Two endpoints are used. The station roster is a static JSON document
// (GET json/station-min-yb2.json) listing every station with its name,
// district, address and coordinates. Live availability comes from
// POST tw2/parkingInfo, which accepts at most MaxBatchSize station ids per
// request; callers split larger sets themselves.
//
// Failures are reported as *NetworkError (transport problems, HTTP error
// statuses, an open circuit breaker) or *DecodeError (a body that is not the
// expected JSON). The client never retries. A circuit breaker opens after
// repeated failures so a dead API fails fast instead of stalling every refresh.
package youbike
