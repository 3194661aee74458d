// Package middleware stores global and route-specific middleware.
//
// These intercept requests to handle cross-cutting concerns such as
// authentication, request logging, CORS, request timeouts, rate limiting
// and panic recovery.
package middleware
