// Package httpclient executes HTTP requests whose responses are validated against a schema
// before they are handed back as typed values.
//
// Execute owns the full lifecycle of one logical request: URL and query assembly, body
// serialization, a per-attempt timeout combined with the caller's context, the retry loop,
// response decoding and schema validation. Stream performs a single call and validates
// every body fragment independently. Upload sends a file as multipart form data while
// reporting progress.
//
// Errors
//   - Every failure is returned as *Error with a Kind of network, timeout, validation,
//     abort or unknown.
//   - Non-2xx responses are network errors carrying the status, the response and its
//     decoded body in Data. They never reach the schema.
//   - Cancelling the caller's context always produces abort and is never retried.
//
// Retries
//   - Configured per request with RetryPolicy, or per client with Builder.WithRetry.
//   - A failed attempt is retried when it timed out, failed in transport, or returned a
//     status of 500 or above. Validation failures and 4xx responses are not retried.
//   - Delay before retry N is Delay for linear backoff and Delay*2^(N-1) for exponential.
//   - Attempts is the number of retries, so Attempts: 2 allows up to three calls.
package httpclient
