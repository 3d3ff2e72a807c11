// Package client talks to the field-records REST API.
//
// # Overview
//
// The package provides:
//  1. A transport-level contract (see the Client interface) covering the
//     bulk checkout and checkin endpoints, generic per-resource list, create,
//     update and delete calls used by the fallback paths, login and a
//     reachability probe.
//  2. A concrete net/http implementation (see HTTPClient) that injects the
//     bearer token, refreshes it once on a 401 (or ahead of expiry, judged
//     from the token's exp claim) and retries the original request.
//  3. The endpoint map from entity types to REST collections (EntityResource).
//
// # Error Handling
//
// Non-2xx responses are returned as *HTTPError, which matches the sentinel
// errors with errors.Is: ErrUnauthorized (401/403), ErrEndpointUnavailable
// (404/405/501), ErrNotFound (404), ErrConflict (409) and ErrUnavailable
// (5xx). Transport failures wrap ErrUnavailable and carry no status.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. Every call takes a context; on top
// of it a fixed per-request timeout applies.
package client
