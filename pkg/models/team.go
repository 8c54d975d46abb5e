package models

import "time"

// Team groups participants working on a shared project.
// Admins is always a subset of Members.
type Team struct {
	ID          string    `json:"id" bson:"_id" validate:"required"`
	Name        string    `json:"name" bson:"name" validate:"required"`
	ChallengeID string    `json:"challengeId,omitempty" bson:"challengeId,omitempty"`
	Members     []string  `json:"members" bson:"members" validate:"min=1"`
	Admins      []string  `json:"admins" bson:"admins" validate:"min=1"`
	CreatedBy   string    `json:"createdBy" bson:"createdBy" validate:"required"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// IsMember reports whether userID is an active member.
func (t *Team) IsMember(userID string) bool {
	return contains(t.Members, userID)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
