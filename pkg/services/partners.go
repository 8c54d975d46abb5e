package services

import (
	"context"
	"errors"
	"strings"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PartnerService runs the partner application workflow.
type PartnerService struct {
	base
	cache *lru.Cache[string, models.Organization]
}

// NewPartnerService returns a PartnerService caching up to cacheSize organizations.
func NewPartnerService(opts Options, cacheSize int) (*PartnerService, error) {
	cache, err := lru.New[string, models.Organization](cacheSize)
	if err != nil {
		return nil, err
	}
	return &PartnerService{base: newBase(opts, "partners"), cache: cache}, nil
}

// ApplyInput is the partner application payload.
type ApplyInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type"`
}

// Apply creates a pending Organization owned by actor and moves the actor's
// profile to the partner role with status pending.
func (s *PartnerService) Apply(ctx context.Context, actor models.Actor, in ApplyInput) (*models.Organization, error) {
	if err := s.authorize(actor, authz.ActionApply, authz.Resource{Kind: authz.ObjPartner}); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var org *models.Organization
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		profile, err := tx.GetUserProfile(ctx, actor.UserID)
		if err != nil {
			return notFound(err, KindProfile, actor.UserID)
		}
		if profile.Role != models.RoleParticipant {
			return &RuleError{Rule: "already_applied", Message: "only participant accounts can apply as partner"}
		}

		now := s.now()
		org = &models.Organization{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Email:     in.Email,
			Status:    models.PartnerPending,
			Type:      in.Type,
			CreatedBy: actor.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return err
		}

		profile.Role = models.RolePartner
		profile.Status = models.ProfileStatus(models.PartnerPending)
		profile.UpdatedAt = now
		return tx.SaveUserProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Add(org.ID, *org)
	s.logger.Info("partner application received", "partner", org.ID, "user", actor.UserID)
	return org, nil
}

// Transition moves partner partnerID to status next. The Organization and the
// linked UserProfile are read and written in one transaction, with the same
// updatedAt. When either is missing nothing is written.
func (s *PartnerService) Transition(ctx context.Context, actor models.Actor, partnerID string, next models.PartnerStatus) (*models.Organization, error) {
	if err := s.authorize(actor, authz.ActionTransition, authz.Resource{Kind: authz.ObjPartner, ID: partnerID}); err != nil {
		s.metrics.ObserveTransition(string(next), "denied")
		return nil, err
	}
	if next == models.PartnerPending || !next.Valid() {
		return nil, &ValidationError{Err: errors.New("status must be one of approved, rejected, suspended")}
	}

	var updated models.Organization
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		org, err := tx.GetOrganization(ctx, partnerID)
		if err != nil {
			return notFound(err, KindOrganization, partnerID)
		}
		profile, err := tx.GetUserProfile(ctx, org.CreatedBy)
		if err != nil {
			return notFound(err, KindProfile, org.CreatedBy)
		}
		if !org.Status.CanTransitionTo(next) {
			return &TransitionError{Kind: KindOrganization, From: string(org.Status), To: string(next)}
		}

		now := s.now()
		if err := tx.SetOrganizationStatus(ctx, org.ID, next, now); err != nil {
			return err
		}
		if err := tx.SetUserProfileStatus(ctx, profile.ID, models.ProfileStatus(next), now); err != nil {
			return err
		}

		updated = *org
		updated.Status = next
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.metrics.ObserveTransition(string(next), "error")
		s.logger.Warn("partner transition failed", "partner", partnerID, "status", next, "err", err)
		return nil, err
	}

	s.cache.Add(updated.ID, updated)
	s.metrics.ObserveTransition(string(next), "ok")
	s.logger.Info("partner transitioned", "partner", partnerID, "status", next, "by", actor.UserID)
	return &updated, nil
}

// Approve moves a pending partner to approved.
func (s *PartnerService) Approve(ctx context.Context, actor models.Actor, partnerID string) (*models.Organization, error) {
	return s.Transition(ctx, actor, partnerID, models.PartnerApproved)
}

// Reject moves a pending partner to rejected.
func (s *PartnerService) Reject(ctx context.Context, actor models.Actor, partnerID string) (*models.Organization, error) {
	return s.Transition(ctx, actor, partnerID, models.PartnerRejected)
}

// Suspend moves an approved partner to suspended.
func (s *PartnerService) Suspend(ctx context.Context, actor models.Actor, partnerID string) (*models.Organization, error) {
	return s.Transition(ctx, actor, partnerID, models.PartnerSuspended)
}

// Reinstate moves a suspended partner back to approved.
func (s *PartnerService) Reinstate(ctx context.Context, actor models.Actor, partnerID string) (*models.Organization, error) {
	return s.Transition(ctx, actor, partnerID, models.PartnerApproved)
}

// List returns partners with status (all when empty) and refreshes the cache.
func (s *PartnerService) List(ctx context.Context, actor models.Actor, status models.PartnerStatus) ([]models.Organization, error) {
	if err := s.authorize(actor, authz.ActionList, authz.Resource{Kind: authz.ObjPartner}); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Err: errors.New("unknown partner status " + string(status))}
	}
	orgs, err := s.db.ListOrganizations(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		s.cache.Add(o.ID, o)
	}
	return orgs, nil
}

// Get returns one partner to an admin or its owner. Cached entries are served
// without a store read.
func (s *PartnerService) Get(ctx context.Context, actor models.Actor, partnerID string) (*models.Organization, error) {
	org, ok := s.cache.Get(partnerID)
	if !ok {
		stored, err := s.db.GetOrganization(ctx, partnerID)
		if err != nil {
			return nil, notFound(err, KindOrganization, partnerID)
		}
		org = *stored
		s.cache.Add(org.ID, org)
	}
	res := authz.Resource{Kind: authz.ObjPartner, ID: org.ID, OwnerID: org.CreatedBy}
	if err := s.authorize(actor, authz.ActionRead, res); err != nil {
		return nil, err
	}
	return &org, nil
}

// approvedPartner returns the approved organization created by userID, if any.
func approvedPartner(ctx context.Context, db database.DatabaseInterface, userID string) (*models.Organization, error) {
	orgs, err := db.ListOrganizationsByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range orgs {
		if orgs[i].Status == models.PartnerApproved {
			return &orgs[i], nil
		}
	}
	return nil, nil
}
