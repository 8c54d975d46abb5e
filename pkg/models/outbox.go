package models

import "time"

// OutboxKind names the deferred side effect carried by an outbox event.
type OutboxKind string

// OutboxParticipantAdded increments Challenge.participants by one.
const OutboxParticipantAdded OutboxKind = "challenge.participant_added"

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxProcessed OutboxStatus = "processed"
	// OutboxFailed events ran out of attempts and are no longer drained.
	OutboxFailed OutboxStatus = "failed"
)

// OutboxEvent is written in the same transaction as the change that caused it
// and applied later by the relay exactly once.
type OutboxEvent struct {
	ID          string       `json:"id" bson:"_id" validate:"required"`
	Kind        OutboxKind   `json:"kind" bson:"kind" validate:"required"`
	ChallengeID string       `json:"challengeId,omitempty" bson:"challengeId,omitempty"`
	SourceID    string       `json:"sourceId,omitempty" bson:"sourceId,omitempty"`
	Status      OutboxStatus `json:"status" bson:"status" validate:"required,oneof=pending processed failed"`
	Attempts    int          `json:"attempts" bson:"attempts"`
	LastError   string       `json:"lastError,omitempty" bson:"lastError,omitempty"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt" validate:"required"`
	ProcessedAt *time.Time   `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
}
