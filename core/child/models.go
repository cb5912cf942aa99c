package child

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
)

// SelfPickupID is the sentinel option id for "the requesting parent picks up themself".
const SelfPickupID = "parent"

type Child struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	BirthDate null.Time   `json:"birth_date,omitempty"`
	PhotoURL  null.String `json:"photo_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC

	// Guardians is populated on demand for admin listings.
	Guardians []GuardianLink `json:"guardians,omitempty"`
}

// GuardianLink relates a parent User to a Child they may request pickup for.
type GuardianLink struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id"`
	ChildID      string    `json:"child_id"`
	Relationship string    `json:"relationship"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"` // UTC

	// ParentName is denormalized from the parent's profile for display.
	ParentName string `json:"parent_name,omitempty"`
}

// AuthorizedPerson is a named, non-user individual a guardian has
// pre-approved to collect a specific child.
type AuthorizedPerson struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"child_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// PickupOption is a selectable pickup person for a child: the requesting
// parent themself, or one of the child's authorized persons.
type PickupOption struct {
	ID           string `json:"id"` // SelfPickupID or an AuthorizedPerson id
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// NewChild contains information needed to register a new Child.
type NewChild struct {
	Name      string    `json:"name" validate:"required"`
	BirthDate null.Time `json:"birth_date"`
	PhotoURL  string    `json:"photo_url" validate:"omitempty,url"`
}

func (nc *NewChild) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// NewGuardianLink links an existing parent user to a child.
type NewGuardianLink struct {
	ParentID     string `json:"parent_id" validate:"required"`
	ChildID      string `json:"child_id" validate:"required"`
	Relationship string `json:"relationship"`
	IsPrimary    bool   `json:"is_primary"`
}

func (ng *NewGuardianLink) Validate(validate *validator.Validate) error {
	ng.Relationship = core.CleanString(ng.Relationship)
	if ng.Relationship == "" {
		ng.Relationship = "Forelder"
	}
	return validate.Struct(ng)
}

// NewAuthorizedPerson pre-approves a named individual for a child.
type NewAuthorizedPerson struct {
	ChildID      string `json:"child_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

func (na *NewAuthorizedPerson) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Relationship = core.CleanString(na.Relationship)
	na.Phone = core.CleanString(na.Phone)
	return validate.Struct(na)
}
