package pickup

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
)

// Status is the lifecycle state of a pickup request.
// Transitions are forward-only: pending -> approved | rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Request struct {
	ID       string `json:"id"`
	ChildID  string `json:"child_id"`
	ParentID string `json:"parent_id"`

	// PickupPersonName is a snapshot of the selected person's name at
	// request time, not a live reference.
	PickupPersonName string      `json:"pickup_person_name"`
	PickupPersonID   null.String `json:"pickup_person_id,omitempty"`

	Status      Status      `json:"status"`
	RequestedAt time.Time   `json:"requested_at"` // UTC
	ApprovedBy  null.String `json:"approved_by,omitempty"`
	ApprovedAt  null.Time   `json:"approved_at,omitempty"`

	// denormalized for listings
	ChildName     string      `json:"child_name,omitempty"`
	ChildPhotoURL null.String `json:"child_photo_url,omitempty"`
	ParentName    string      `json:"parent_name,omitempty"`
}

// IsPending reports whether the request still awaits a staff decision.
func (r Request) IsPending() bool { return r.Status == StatusPending }

// NewRequest contains the parent's pickup selection.
type NewRequest struct {
	ChildID string `json:"child_id" validate:"required"`
	// PickupPersonID is child.SelfPickupID for the parent themself,
	// or the id of one of the child's authorized persons.
	PickupPersonID string `json:"pickup_person_id" validate:"required"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.ChildID = core.CleanString(nr.ChildID)
	nr.PickupPersonID = core.CleanString(nr.PickupPersonID)
	return validate.Struct(nr)
}
