package entity

import "time"

// Type classifies a tracked location.
type Type string

const (
	TypeCommunity Type = "community"
	TypeFacility  Type = "facility"
	TypeCamp      Type = "camp"
)

// Valid reports whether the entity type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeCommunity, TypeFacility, TypeCamp:
		return true
	}
	return false
}

// Entity is a physical or administrative location tracked by the system.
type Entity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       Type      `json:"type"`
	Lga        string    `json:"lga,omitempty"`
	Ward       string    `json:"ward,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Population int       `json:"population"`
	Households int       `json:"households"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Assignment binds a responder or assessor to an entity.
type Assignment struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	AssignedBy string    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}
