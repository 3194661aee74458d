// Package errs defines the error shapes returned to API clients.
//
// Every failure that reaches the terminal error handler is rendered from
// an HTTPError, so clients always receive the same JSON envelope:
// a machine code, a message, the status, optional field errors and an
// optional action hint (e.g. redirect to login).
package errs
