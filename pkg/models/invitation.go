package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// TeamInvitation is an invite to join a team, addressed by email.
// The document id is the URL-safe token sent to the invitee.
type TeamInvitation struct {
	ID         string           `json:"id" bson:"_id" validate:"required"`
	TeamID     string           `json:"teamId" bson:"teamId" validate:"required"`
	Email      string           `json:"email" bson:"email" validate:"required,email"`
	InviterID  string           `json:"inviterId" bson:"inviterId" validate:"required"`
	Status     InvitationStatus `json:"status" bson:"status" validate:"required,oneof=pending accepted declined expired"`
	ExpiresAt  time.Time        `json:"expiresAt" bson:"expiresAt" validate:"required"`
	AcceptedBy string           `json:"acceptedBy,omitempty" bson:"acceptedBy,omitempty"`
	CreatedAt  time.Time        `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt  time.Time        `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// Expired reports whether a pending invitation is past its expiry at t.
func (inv *TeamInvitation) Expired(t time.Time) bool {
	return inv.Status == InvitationPending && t.After(inv.ExpiresAt)
}
