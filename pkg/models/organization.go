package models

import "time"

// PartnerStatus is the lifecycle state of a partner organization.
type PartnerStatus string

const (
	PartnerPending   PartnerStatus = "pending"
	PartnerApproved  PartnerStatus = "approved"
	PartnerRejected  PartnerStatus = "rejected"
	PartnerSuspended PartnerStatus = "suspended"
)

// partnerTransitions lists every allowed status change. rejected is terminal.
var partnerTransitions = map[PartnerStatus][]PartnerStatus{
	PartnerPending:   {PartnerApproved, PartnerRejected},
	PartnerApproved:  {PartnerSuspended},
	PartnerSuspended: {PartnerApproved},
}

// CanTransitionTo reports whether s may move to next.
func (s PartnerStatus) CanTransitionTo(next PartnerStatus) bool {
	for _, to := range partnerTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s PartnerStatus) Valid() bool {
	switch s {
	case PartnerPending, PartnerApproved, PartnerRejected, PartnerSuspended:
		return true
	}
	return false
}

// Organization is a partner account applying to host challenges.
// CreatedBy references the owning UserProfile whose status mirrors Status.
type Organization struct {
	ID        string        `json:"id" bson:"_id" validate:"required"`
	Name      string        `json:"name" bson:"name" validate:"required"`
	Email     string        `json:"email" bson:"email" validate:"required,email"`
	Status    PartnerStatus `json:"status" bson:"status" validate:"required,oneof=pending approved rejected suspended"`
	Type      string        `json:"type,omitempty" bson:"type,omitempty"`
	CreatedBy string        `json:"createdBy" bson:"createdBy" validate:"required"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt" validate:"required"`
}
