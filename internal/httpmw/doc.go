// Package httpmw provides HTTP middleware for the public-facing server.
//
// Generic middleware (request ID, client IP extraction, logging, panic
// recovery, body limits) composes via Chain in httpserver.NewHandler. The
// request-boundary security checks — nonce, session refresh, security
// headers, CSRF, audit, API rate limiting — run inside SecurityPipeline as
// strictly sequential stages; that pipeline is the only place those checks
// occur, and no downstream handler re-implements them.
//
// User-supplied data (query params, user-agent, header values) is
// intentionally excluded from logs to prevent PII leaks and log injection.
package httpmw
