package models

import (
	"fmt"
	"time"
)

// ChallengeStatus of a challenge.
type ChallengeStatus string

const (
	ChallengeDraft  ChallengeStatus = "draft"
	ChallengeOpen   ChallengeStatus = "open"
	ChallengeClosed ChallengeStatus = "closed"
)

// Challenge is hosted by an approved partner (or the platform itself when PartnerID is empty).
type Challenge struct {
	ID           string          `json:"id" bson:"_id" validate:"required"`
	Title        string          `json:"title" bson:"title" validate:"required"`
	Description  string          `json:"description,omitempty" bson:"description,omitempty"`
	PartnerID    string          `json:"partnerId,omitempty" bson:"partnerId,omitempty"`
	Status       ChallengeStatus `json:"status" bson:"status" validate:"required,oneof=draft open closed"`
	MaxTeamSize  int             `json:"maxTeamSize" bson:"maxTeamSize" validate:"gte=1"`
	Participants int64           `json:"participants" bson:"participants"`
	StartsAt     *time.Time      `json:"startsAt,omitempty" bson:"startsAt,omitempty"`
	EndsAt       *time.Time      `json:"endsAt,omitempty" bson:"endsAt,omitempty"`
	CreatedBy    string          `json:"createdBy" bson:"createdBy" validate:"required"`
	CreatedAt    time.Time       `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt    time.Time       `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// IsOpen reports whether the challenge accepts joins and new projects at t.
func (c *Challenge) IsOpen(t time.Time) bool {
	if c.Status != ChallengeOpen {
		return false
	}
	if c.EndsAt != nil && t.After(*c.EndsAt) {
		return false
	}
	return true
}

// TrackingStatus of a user's participation in a challenge.
type TrackingStatus string

const (
	TrackingInProgress TrackingStatus = "in-progress"
	TrackingSubmitted  TrackingStatus = "submitted"
)

// ChallengeTracking is the per-user record of a joined challenge.
type ChallengeTracking struct {
	ID          string         `json:"id" bson:"_id" validate:"required"`
	UserID      string         `json:"userId" bson:"userId" validate:"required"`
	ChallengeID string         `json:"challengeId" bson:"challengeId" validate:"required"`
	Status      TrackingStatus `json:"status" bson:"status" validate:"required,oneof=in-progress submitted"`
	JoinedAt    time.Time      `json:"joinedAt" bson:"joinedAt" validate:"required"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// TrackingID is the id of the tracking record of userID in challengeID.
func TrackingID(userID, challengeID string) string {
	return fmt.Sprintf("%s_%s", userID, challengeID)
}
