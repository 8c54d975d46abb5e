package services

import (
	"context"
	"strings"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"

	"github.com/google/uuid"
)

// ProjectService creates projects and runs the submission workflow.
type ProjectService struct {
	base
	relay *OutboxRelay
}

// NewProjectService returns a ProjectService that hands submission outbox
// events to relay right after commit. relay may be nil, leaving the events
// to the scheduled drain.
func NewProjectService(opts Options, relay *OutboxRelay) *ProjectService {
	return &ProjectService{base: newBase(opts, "submissions"), relay: relay}
}

// CreateProjectInput is the new project payload.
type CreateProjectInput struct {
	ChallengeID string            `json:"challengeId" validate:"required"`
	TeamID      string            `json:"teamId"`
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	Visibility  models.Visibility `json:"visibility" validate:"omitempty,oneof=private team public"`
}

// SubmitResult is returned by a committed submission. Pending is set when the
// challenge counter update is still queued; Partial then carries the cause.
type SubmitResult struct {
	Project       *models.Project      `json:"project"`
	Submission    *models.Submission   `json:"submission"`
	OutboxEventID string               `json:"outboxEventId"`
	Pending       bool                 `json:"pending"`
	Partial       *PartialFailureError `json:"-"`
}

// projectResource builds the authz resource of p, loading its team if any.
func projectResource(ctx context.Context, r database.Reader, p *models.Project) (authz.Resource, error) {
	res := authz.Resource{
		Kind:    authz.ObjProject,
		ID:      p.ID,
		OwnerID: p.UserID,
		Public:  p.Visibility == models.VisibilityPublic,
	}
	if p.TeamID == "" {
		return res, nil
	}
	team, err := r.GetTeam(ctx, p.TeamID)
	if err != nil {
		return res, notFound(err, KindTeam, p.TeamID)
	}
	res.Admins = team.Admins
	res.Members = team.Members
	return res, nil
}

// CreateProject creates a draft project in an open challenge. A team
// project requires the actor to be a member of the team.
func (s *ProjectService) CreateProject(ctx context.Context, actor models.Actor, in CreateProjectInput) (*models.Project, error) {
	if err := s.authorize(actor, authz.ActionCreate, authz.Resource{Kind: authz.ObjProject}); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	now := s.now()
	challenge, err := s.db.GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		return nil, notFound(err, KindChallenge, in.ChallengeID)
	}
	if !challenge.IsOpen(now) {
		return nil, &RuleError{Rule: "challenge_closed", Message: "challenge is not open for projects"}
	}

	visibility := in.Visibility
	if in.TeamID != "" {
		team, err := s.db.GetTeam(ctx, in.TeamID)
		if err != nil {
			return nil, notFound(err, KindTeam, in.TeamID)
		}
		if !team.IsMember(actor.UserID) {
			return nil, &PermissionError{UserID: actor.UserID, Action: authz.ActionCreate, Kind: authz.ObjTeam, ID: team.ID}
		}
		if team.ChallengeID != "" && team.ChallengeID != challenge.ID {
			return nil, &RuleError{Rule: "team_challenge_mismatch", Message: "team belongs to another challenge"}
		}
		if visibility == "" {
			visibility = models.VisibilityTeam
		}
	}
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}

	p := &models.Project{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		TeamID:      in.TeamID,
		ChallengeID: challenge.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.ProjectDraft,
		Visibility:  visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project", p.ID, "challenge", p.ChallengeID, "user", actor.UserID)
	return p, nil
}

// GetProject returns a project to its owner, its team members, or anyone
// when it is public.
func (s *ProjectService) GetProject(ctx context.Context, actor models.Actor, projectID string) (*models.Project, error) {
	p, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, KindProject, projectID)
	}
	res, err := projectResource(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionRead, res); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns the actor's own projects followed by the projects of
// the actor's teams, without duplicates.
func (s *ProjectService) ListProjects(ctx context.Context, actor models.Actor) ([]models.Project, error) {
	projects, err := s.db.ListProjectsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	teams, err := s.db.ListTeamsByMember(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(projects))
	for _, p := range projects {
		seen[p.ID] = true
	}
	for _, t := range teams {
		shared, err := s.db.ListProjectsByTeam(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range shared {
			if !seen[p.ID] {
				seen[p.ID] = true
				projects = append(projects, p)
			}
		}
	}
	return projects, nil
}

// StartProject moves a draft project to in-progress and opens its
// submission record with progress 0. A submission that is already submitted
// is left untouched.
func (s *ProjectService) StartProject(ctx context.Context, actor models.Actor, projectID string) (*models.Project, error) {
	p, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, KindProject, projectID)
	}
	res, err := projectResource(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionStart, res); err != nil {
		return nil, err
	}

	var started *models.Project
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return notFound(err, KindProject, projectID)
		}
		if !p.Status.CanTransitionTo(models.ProjectInProgress) {
			return &TransitionError{Kind: KindProject, From: string(p.Status), To: string(models.ProjectInProgress)}
		}

		now := s.now()
		p.Status = models.ProjectInProgress
		p.UpdatedAt = now
		if err := tx.SaveProject(ctx, p); err != nil {
			return err
		}

		subID := models.SubmissionID(p.UserID, p.TeamID, p.ChallengeID)
		existing, err := tx.GetSubmission(ctx, subID)
		switch {
		case err == nil && existing.Status == models.SubmissionSubmitted:
			// 已提交的记录保持不变
			started = p
			return nil
		case err != nil && !database.IsNotFound(err):
			return err
		}

		sub := &models.Submission{
			ID:          subID,
			ProjectID:   p.ID,
			ChallengeID: p.ChallengeID,
			UserID:      p.UserID,
			TeamID:      p.TeamID,
			Status:      models.SubmissionInProgress,
			Progress:    0,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.MergeSubmission(ctx, sub); err != nil {
			return err
		}
		started = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// Submit moves a project to submitted. Only the owner or, for team
// projects, a team admin may submit; the check runs before any write.
//
// The project, submission, caller tracking and owner counters are written in
// one transaction together with an outbox event for the challenge
// participants counter. The event is applied right after commit; if that
// fails the submission still stands and the result is marked Pending.
func (s *ProjectService) Submit(ctx context.Context, actor models.Actor, projectID string) (*SubmitResult, error) {
	p, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, KindProject, projectID)
	}
	res, err := projectResource(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionSubmit, res); err != nil {
		s.metrics.ObserveSubmission("denied")
		s.logger.Warn("submission rejected", "project", projectID, "user", actor.UserID)
		return nil, err
	}

	result := &SubmitResult{}
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return notFound(err, KindProject, projectID)
		}
		// team admins may have changed since the gate above
		res, err := projectResource(ctx, tx, p)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, authz.ActionSubmit, res); err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(models.ProjectSubmitted) {
			return &TransitionError{Kind: KindProject, From: string(p.Status), To: string(models.ProjectSubmitted)}
		}
		if _, err := tx.GetChallenge(ctx, p.ChallengeID); err != nil {
			return notFound(err, KindChallenge, p.ChallengeID)
		}

		now := s.now()
		p.Status = models.ProjectSubmitted
		p.SubmittedAt = &now
		p.UpdatedAt = now
		if err := tx.SaveProject(ctx, p); err != nil {
			return err
		}

		subID := models.SubmissionID(p.UserID, p.TeamID, p.ChallengeID)
		existing, err := tx.GetSubmission(ctx, subID)
		switch {
		case err == nil && existing.Status == models.SubmissionSubmitted:
			// 已提交的记录保持不变
			started = p
			return nil
		case err != nil && !database.IsNotFound(err):
			return err
		}

		sub := &models.Submission{
			ID:          subID,
			ProjectID:   p.ID,
			ChallengeID: p.ChallengeID,
			UserID:      p.UserID,
			TeamID:      p.TeamID,
			Status:      models.SubmissionSubmitted,
			Progress:    100,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.MergeSubmission(ctx, sub); err != nil {
			return err
		}

		tracking := &models.ChallengeTracking{
			ID:          models.TrackingID(actor.UserID, p.ChallengeID),
			UserID:      actor.UserID,
			ChallengeID: p.ChallengeID,
			Status:      models.TrackingSubmitted,
			JoinedAt:    now,
			SubmittedAt: &now,
			UpdatedAt:   now,
		}
		if err := tx.MergeTracking(ctx, tracking); err != nil {
			return err
		}

		delta := models.ProfileDelta{
			TotalSubmissions:      1,
			TotalActiveChallenges: -1,
			ProjectsCount:         1,
			AddSubmission:         sub.ID,
		}
		if err := tx.IncrementPublicProfile(ctx, p.UserID, delta, now); err != nil {
			return err
		}

		ev := &models.OutboxEvent{
			ID:          uuid.NewString(),
			Kind:        models.OutboxParticipantAdded,
			ChallengeID: p.ChallengeID,
			SourceID:    sub.ID,
			Status:      models.OutboxPending,
			CreatedAt:   now,
		}
		if err := tx.CreateOutboxEvent(ctx, ev); err != nil {
			return err
		}

		result.Project = p
		result.Submission = sub
		result.OutboxEventID = ev.ID
		return nil
	})
	if err != nil {
		s.metrics.ObserveSubmission("error")
		s.logger.Warn("submission failed", "project", projectID, "user", actor.UserID, "err", err)
		return nil, err
	}

	s.metrics.ObserveSubmission("ok")
	s.logger.Info("project submitted", "project", projectID, "submission", result.Submission.ID, "user", actor.UserID)

	if s.relay == nil {
		result.Pending = true
		return result, nil
	}
	if err := s.relay.Apply(ctx, result.OutboxEventID); err != nil {
		result.Pending = true
		result.Partial = &PartialFailureError{
			Op:      "submit project " + projectID,
			Pending: []string{"challenge.participants"},
			Err:     err,
		}
		s.logger.Warn("challenge counter deferred", "project", projectID, "event", result.OutboxEventID, "err", err)
	}
	return result, nil
}
