// Package common holds shared value types used across the planschedule layers.
package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4.
type ID string

// NewID returns a freshly generated random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// Validate checks that the ID is a parseable UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	return nil
}

// UserID is a string alias for a user identifier.
type UserID string

// Privilege is the edit-privilege level carried by a caller and required by a
// deadline definition.  Levels are strictly ordered.
type Privilege string

const (
	PrivilegeNone   Privilege = ""
	PrivilegeBrowse Privilege = "browse"
	PrivilegeEdit   Privilege = "edit"
	PrivilegeCreate Privilege = "create"
	PrivilegeAdmin  Privilege = "admin"
)

// privilegeRank orders privileges from weakest to strongest.
var privilegeRank = map[Privilege]int{
	PrivilegeNone:   0,
	PrivilegeBrowse: 1,
	PrivilegeEdit:   2,
	PrivilegeCreate: 3,
	PrivilegeAdmin:  4,
}

// AtLeast reports whether the receiver grants at least the required level.
// Unknown privilege strings rank below browse.
func (p Privilege) AtLeast(required Privilege) bool {
	return privilegeRank[p] >= privilegeRank[required]
}

// Pagination defines parameters for paginated requests.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total,omitempty"`
}

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ErrorDetail provides structured error information for API responses.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth provides health information for a specific component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message"`
}

// DomainEvent represents a significant event in the domain.
type DomainEvent interface {
	EventID() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent provides common fields for domain events.
type BaseEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"occurred_at"`
	AggID     string    `json:"aggregate_id"`
}

// NewBaseEvent stamps a new event envelope for the given aggregate.
func NewBaseEvent(aggID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggID }
