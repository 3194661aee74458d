// Package model defines the domain entities and the request/response
// payloads exchanged over the API.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the columns every UUID-keyed table has.
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// EmptyRequest is used by routes that take no body.
type EmptyRequest struct{}

func (EmptyRequest) Validate() error { return nil }
