// Package handler is the HTTP layer. Handlers bind and validate request
// payloads, call the service layer and shape the response; the router
// maps routes onto them.
package handler
