package database

import (
	"context"
	"errors"
	"time"

	"challenge-hub-backend/pkg/models"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned when creating a document whose id is taken.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")
	// ErrTransactionConflict is returned when a concurrent write touched the
	// read set of a transaction. The transaction is aborted, never retried here.
	ErrTransactionConflict = errors.New("transaction conflict")
	// ErrInvalidDocument is returned when a stored document is missing required fields.
	ErrInvalidDocument = errors.New("invalid document")
)

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Reader reads single documents by id.
type Reader interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetCredential(ctx context.Context, email string) (*models.Credential, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetTracking(ctx context.Context, id string) (*models.ChallengeTracking, error)
	GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error)
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetInvitation(ctx context.Context, id string) (*models.TeamInvitation, error)
	GetOutboxEvent(ctx context.Context, id string) (*models.OutboxEvent, error)
}

// Writer mutates single documents. Create* fails with ErrDuplicateKey when the id
// exists, Save* replaces (or inserts) the whole document, Set*/Increment* fail with
// ErrNotFound unless documented otherwise.
type Writer interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	SetOrganizationStatus(ctx context.Context, id string, status models.PartnerStatus, at time.Time) error

	CreateUserProfile(ctx context.Context, p *models.UserProfile) error
	SaveUserProfile(ctx context.Context, p *models.UserProfile) error
	SetUserProfileStatus(ctx context.Context, id string, status models.ProfileStatus, at time.Time) error
	CreateCredential(ctx context.Context, c *models.Credential) error

	CreateProject(ctx context.Context, p *models.Project) error
	SaveProject(ctx context.Context, p *models.Project) error

	// MergeSubmission upserts the submission, keeping CreatedAt of an existing document.
	MergeSubmission(ctx context.Context, s *models.Submission) error
	CreateTracking(ctx context.Context, t *models.ChallengeTracking) error
	// MergeTracking upserts the tracking record, keeping JoinedAt of an existing document.
	MergeTracking(ctx context.Context, t *models.ChallengeTracking) error
	// IncrementPublicProfile applies delta with atomic increment semantics,
	// creating the profile when it does not exist.
	IncrementPublicProfile(ctx context.Context, userID string, delta models.ProfileDelta, at time.Time) error

	CreateChallenge(ctx context.Context, c *models.Challenge) error
	IncrementChallengeParticipants(ctx context.Context, id string, n int64, at time.Time) error

	CreateTeam(ctx context.Context, t *models.Team) error
	SaveTeam(ctx context.Context, t *models.Team) error
	CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error
	SaveInvitation(ctx context.Context, inv *models.TeamInvitation) error

	CreateOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error
	SaveOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error
}

// Tx is the read and write set available inside RunTransaction.
type Tx interface {
	Reader
	Writer
}

// TxFunc runs inside a transaction. It must only use the ctx and tx it is given.
type TxFunc func(ctx context.Context, tx Tx) error

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	Tx

	ListOrganizations(ctx context.Context, status models.PartnerStatus) ([]models.Organization, error)
	ListOrganizationsByCreator(ctx context.Context, userID string) ([]models.Organization, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]models.Project, error)
	ListProjectsByTeam(ctx context.Context, teamID string) ([]models.Project, error)
	ListTeamsByMember(ctx context.Context, userID string) ([]models.Team, error)
	ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]models.TeamInvitation, error)
	ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)

	// RunTransaction runs fn atomically: either every write fn made is
	// committed or none is. A returned error aborts the transaction.
	RunTransaction(ctx context.Context, fn TxFunc) error

	// EnsureSchema creates tables or indexes. It is idempotent.
	EnsureSchema(ctx context.Context) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}
