// Package validation binds and validates request payloads.
//
// Struct tags (`validate:"required,email"`) are enforced with
// go-playground/validator, and failures are turned into the field-level
// errors clients receive in the errs.HTTPError envelope.
package validation
