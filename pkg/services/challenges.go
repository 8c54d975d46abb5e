package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"

	"github.com/google/uuid"
)

const defaultMaxTeamSize = 4

// ChallengeService manages challenges and participation.
type ChallengeService struct {
	base
}

func NewChallengeService(opts Options) *ChallengeService {
	return &ChallengeService{base: newBase(opts, "challenges")}
}

// CreateChallengeInput is the new challenge payload.
type CreateChallengeInput struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=10000"`
	Status      models.ChallengeStatus `json:"status" validate:"omitempty,oneof=draft open closed"`
	MaxTeamSize int                    `json:"maxTeamSize" validate:"gte=0,lte=50"`
	StartsAt    *time.Time             `json:"startsAt"`
	EndsAt      *time.Time             `json:"endsAt"`
}

// Create creates a challenge. Admins host platform challenges; an approved
// partner hosts under its organization.
func (s *ChallengeService) Create(ctx context.Context, actor models.Actor, in CreateChallengeInput) (*models.Challenge, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		return nil, &ValidationError{Err: errors.New("endsAt is before startsAt")}
	}

	res := authz.Resource{Kind: authz.ObjChallenge}
	var partnerID string
	if actor.Role == models.RolePartner {
		org, err := approvedPartner(ctx, s.db, actor.UserID)
		if err != nil {
			return nil, err
		}
		if org != nil {
			partnerID = org.ID
			res.Extra = []string{authz.RoleApprovedPartner}
		}
	}
	if err := s.authorize(actor, authz.ActionCreate, res); err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Challenge{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		PartnerID:   partnerID,
		Status:      in.Status,
		MaxTeamSize: in.MaxTeamSize,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Status == "" {
		c.Status = models.ChallengeDraft
	}
	if c.MaxTeamSize == 0 {
		c.MaxTeamSize = defaultMaxTeamSize
	}
	if err := s.db.CreateChallenge(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("challenge created", "challenge", c.ID, "partner", partnerID, "by", actor.UserID)
	return c, nil
}

func (s *ChallengeService) Get(ctx context.Context, id string) (*models.Challenge, error) {
	c, err := s.db.GetChallenge(ctx, id)
	if err != nil {
		return nil, notFound(err, KindChallenge, id)
	}
	return c, nil
}

// List returns challenges with status, or all of them when status is empty.
func (s *ChallengeService) List(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	switch status {
	case "", models.ChallengeDraft, models.ChallengeOpen, models.ChallengeClosed:
	default:
		return nil, &ValidationError{Err: errors.New("unknown challenge status " + string(status))}
	}
	return s.db.ListChallenges(ctx, status)
}

// Join records the actor's participation in an open challenge and bumps
// total_active_challenges. Joining again returns the existing record.
func (s *ChallengeService) Join(ctx context.Context, actor models.Actor, challengeID string) (*models.ChallengeTracking, error) {
	if err := s.authorize(actor, authz.ActionJoin, authz.Resource{Kind: authz.ObjChallenge, ID: challengeID}); err != nil {
		return nil, err
	}

	var tracking *models.ChallengeTracking
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		id := models.TrackingID(actor.UserID, challengeID)
		existing, err := tx.GetTracking(ctx, id)
		if err == nil {
			tracking = existing
			return nil
		}
		if !database.IsNotFound(err) {
			return err
		}

		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return notFound(err, KindChallenge, challengeID)
		}
		now := s.now()
		if !c.IsOpen(now) {
			return &RuleError{Rule: "challenge_closed", Message: "challenge is not open for joining"}
		}

		tracking = &models.ChallengeTracking{
			ID:          id,
			UserID:      actor.UserID,
			ChallengeID: challengeID,
			Status:      models.TrackingInProgress,
			JoinedAt:    now,
			UpdatedAt:   now,
		}
		if err := tx.CreateTracking(ctx, tracking); err != nil {
			return err
		}
		return tx.IncrementPublicProfile(ctx, actor.UserID, models.ProfileDelta{TotalActiveChallenges: 1}, now)
	})
	if err != nil {
		return nil, err
	}
	return tracking, nil
}
