package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/utils"

	"github.com/google/uuid"
)

const invitationTTL = 14 * 24 * time.Hour

// TeamService runs the team invitation workflow.
type TeamService struct {
	base
}

func NewTeamService(opts Options) *TeamService {
	return &TeamService{base: newBase(opts, "teams")}
}

// CreateTeamInput is the new team payload.
type CreateTeamInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	ChallengeID string `json:"challengeId"`
}

// Create creates a team with the actor as its only member and admin.
func (s *TeamService) Create(ctx context.Context, actor models.Actor, in CreateTeamInput) (*models.Team, error) {
	if err := s.authorize(actor, authz.ActionCreate, authz.Resource{Kind: authz.ObjTeam}); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if in.ChallengeID != "" {
		if _, err := s.db.GetChallenge(ctx, in.ChallengeID); err != nil {
			return nil, notFound(err, KindChallenge, in.ChallengeID)
		}
	}

	now := s.now()
	t := &models.Team{
		ID:          uuid.NewString(),
		Name:        in.Name,
		ChallengeID: in.ChallengeID,
		Members:     []string{actor.UserID},
		Admins:      []string{actor.UserID},
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team", t.ID, "user", actor.UserID)
	return t, nil
}

// Get returns a team to its members and to admins.
func (s *TeamService) Get(ctx context.Context, actor models.Actor, teamID string) (*models.Team, error) {
	t, err := s.db.GetTeam(ctx, teamID)
	if err != nil {
		return nil, notFound(err, KindTeam, teamID)
	}
	if err := s.authorize(actor, authz.ActionRead, teamResource(t)); err != nil {
		return nil, err
	}
	return t, nil
}

func teamResource(t *models.Team) authz.Resource {
	return authz.Resource{
		Kind:    authz.ObjTeam,
		ID:      t.ID,
		OwnerID: t.CreatedBy,
		Admins:  t.Admins,
		Members: t.Members,
	}
}

// Invite creates a pending invitation to email. Only team admins may invite.
func (s *TeamService) Invite(ctx context.Context, actor models.Actor, teamID, email string) (*models.TeamInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	t, err := s.db.GetTeam(ctx, teamID)
	if err != nil {
		return nil, notFound(err, KindTeam, teamID)
	}
	if err := s.authorize(actor, authz.ActionInvite, teamResource(t)); err != nil {
		return nil, err
	}

	token, err := utils.GenerateURLToken(utils.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv := &models.TeamInvitation{
		ID:        token,
		TeamID:    t.ID,
		Email:     email,
		InviterID: actor.UserID,
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(invitationTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateInput(inv); err != nil {
		return nil, err
	}
	if err := s.db.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invitation sent", "team", t.ID, "email", email, "by", actor.UserID)
	return inv, nil
}

// Accept adds the actor to the team of invitation token. The invitation must
// be pending, unexpired and addressed to the actor's email, and the team must
// have room under the challenge's maxTeamSize. An expired invitation is
// marked expired.
func (s *TeamService) Accept(ctx context.Context, actor models.Actor, token string) (*models.Team, error) {
	var (
		team    *models.Team
		expired bool
	)
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		expired = false
		inv, err := tx.GetInvitation(ctx, token)
		if err != nil {
			return notFound(err, KindInvitation, token)
		}
		res := authz.Resource{Kind: authz.ObjInvitation, ID: inv.ID, Email: inv.Email}
		if err := s.authorize(actor, authz.ActionAccept, res); err != nil {
			return err
		}

		now := s.now()
		if inv.Expired(now) {
			inv.Status = models.InvitationExpired
			inv.UpdatedAt = now
			expired = true
			return tx.SaveInvitation(ctx, inv)
		}
		if inv.Status != models.InvitationPending {
			return &TransitionError{Kind: KindInvitation, From: string(inv.Status), To: string(models.InvitationAccepted)}
		}

		t, err := tx.GetTeam(ctx, inv.TeamID)
		if err != nil {
			return notFound(err, KindTeam, inv.TeamID)
		}
		if t.IsMember(actor.UserID) {
			return &RuleError{Rule: "already_member", Message: "already a member of this team"}
		}
		if t.ChallengeID != "" {
			c, err := tx.GetChallenge(ctx, t.ChallengeID)
			if err != nil {
				return notFound(err, KindChallenge, t.ChallengeID)
			}
			if len(t.Members)+1 > c.MaxTeamSize {
				return &RuleError{Rule: "team_full", Message: "team has reached the maximum size for this challenge"}
			}
		}

		t.Members = append(t.Members, actor.UserID)
		t.UpdatedAt = now
		if err := tx.SaveTeam(ctx, t); err != nil {
			return err
		}
		inv.Status = models.InvitationAccepted
		inv.AcceptedBy = actor.UserID
		inv.UpdatedAt = now
		if err := tx.SaveInvitation(ctx, inv); err != nil {
			return err
		}
		team = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, &RuleError{Rule: "invitation_expired", Message: "invitation has expired"}
	}
	s.logger.Info("invitation accepted", "team", team.ID, "user", actor.UserID)
	return team, nil
}

// Decline marks a pending invitation addressed to the actor as declined.
func (s *TeamService) Decline(ctx context.Context, actor models.Actor, token string) (*models.TeamInvitation, error) {
	var declined *models.TeamInvitation
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		inv, err := tx.GetInvitation(ctx, token)
		if err != nil {
			return notFound(err, KindInvitation, token)
		}
		res := authz.Resource{Kind: authz.ObjInvitation, ID: inv.ID, Email: inv.Email}
		if err := s.authorize(actor, authz.ActionDecline, res); err != nil {
			return err
		}
		if inv.Status != models.InvitationPending {
			return &TransitionError{Kind: KindInvitation, From: string(inv.Status), To: string(models.InvitationDeclined)}
		}
		inv.Status = models.InvitationDeclined
		inv.UpdatedAt = s.now()
		declined = inv
		return tx.SaveInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return declined, nil
}

// ListMyInvitations returns the invitations addressed to the actor's email.
// Pending invitations past their expiry are reported as expired.
func (s *TeamService) ListMyInvitations(ctx context.Context, actor models.Actor) ([]models.TeamInvitation, error) {
	if actor.Email == "" {
		return nil, &ValidationError{Err: errors.New("actor has no email")}
	}
	invs, err := s.db.ListInvitationsByEmail(ctx, strings.ToLower(actor.Email))
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range invs {
		if invs[i].Expired(now) {
			invs[i].Status = models.InvitationExpired
		}
	}
	return invs, nil
}
