package models

import (
	"github.com/google/uuid"
)

// Team is a real-world team that participants draft.
type Team struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
	City string    `json:"city,omitempty"`
}
