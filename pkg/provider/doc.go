// Package provider is the HTTP client for the external scraping provider.
//
// Each source kind maps to a configured actor whose synchronous
// dataset-items endpoint returns a JSON array of loosely-typed post
// records. Records are returned as models.RawPost without interpretation;
// pkg/resolve owns field probing.
//
// HTTP failures are mapped onto the provider error family of pkg/errors:
//   - 401/403: auth
//   - 404: not_found
//   - 408/504 and client deadlines: timeout
//   - 429: rate_limit, with RetryAfter from the response header
//   - other 5xx: server_error
//   - other 4xx: bad_request
//   - transport failures: network
//   - undecodable bodies: parsing
package provider
