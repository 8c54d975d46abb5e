package models

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectSubmitted  ProjectStatus = "submitted"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectDraft:      {ProjectInProgress, ProjectSubmitted},
	ProjectInProgress: {ProjectSubmitted},
}

// CanTransitionTo reports whether s may move to next. submitted is terminal.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, to := range projectTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Visibility controls who can read a project.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// Project is exclusively owned by UserID and optionally shared with a team.
type Project struct {
	ID          string        `json:"id" bson:"_id" validate:"required"`
	UserID      string        `json:"userId" bson:"userId" validate:"required"`
	TeamID      string        `json:"teamId,omitempty" bson:"teamId,omitempty"`
	ChallengeID string        `json:"challengeId" bson:"challengeId" validate:"required"`
	Title       string        `json:"title" bson:"title" validate:"required"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Status      ProjectStatus `json:"status" bson:"status" validate:"required,oneof=draft in-progress submitted"`
	Visibility  Visibility    `json:"visibility" bson:"visibility" validate:"required,oneof=private team public"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// SubmissionStatus of a Submission record.
type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "in-progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
)

// Submission is the derived record written when a project is submitted.
// Its id is deterministic, see SubmissionID.
type Submission struct {
	ID          string           `json:"id" bson:"_id" validate:"required"`
	ProjectID   string           `json:"projectId" bson:"projectId" validate:"required"`
	ChallengeID string           `json:"challengeId" bson:"challengeId" validate:"required"`
	UserID      string           `json:"userId" bson:"userId" validate:"required"`
	TeamID      string           `json:"teamId,omitempty" bson:"teamId,omitempty"`
	Status      SubmissionStatus `json:"status" bson:"status" validate:"required"`
	Progress    int              `json:"progress" bson:"progress" validate:"gte=0,lte=100"`
	CreatedAt   time.Time        `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt   time.Time        `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// SubmissionID returns team_{teamID}_{challengeID} for team projects and
// {userID}_{challengeID} otherwise.
func SubmissionID(userID, teamID, challengeID string) string {
	if teamID != "" {
		return fmt.Sprintf("team_%s_%s", teamID, challengeID)
	}
	return fmt.Sprintf("%s_%s", userID, challengeID)
}
