package services

import (
	"context"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"

	"golang.org/x/sync/errgroup"
)

const dashboardFanout = 8

// DashboardService assembles the participant dashboard.
type DashboardService struct {
	base
}

func NewDashboardService(opts Options) *DashboardService {
	return &DashboardService{base: newBase(opts, "dashboard")}
}

// ParticipantDashboard is everything the participant dashboard shows.
type ParticipantDashboard struct {
	Profile       *models.UserProfile   `json:"profile"`
	PublicProfile *models.PublicProfile `json:"publicProfile"`
	Projects      []models.Project      `json:"projects"`
	Challenges    []models.Challenge    `json:"challenges"`
	Teams         []models.Team         `json:"teams"`
}

// Participant loads the actor's dashboard. The challenges and teams
// referenced by the projects are fetched concurrently; missing ones are
// skipped.
func (s *DashboardService) Participant(ctx context.Context, actor models.Actor) (*ParticipantDashboard, error) {
	res := authz.Resource{Kind: authz.ObjDashboard, ID: actor.UserID, OwnerID: actor.UserID}
	if err := s.authorize(actor, authz.ActionRead, res); err != nil {
		return nil, err
	}

	profile, err := s.db.GetUserProfile(ctx, actor.UserID)
	if err != nil {
		return nil, notFound(err, KindProfile, actor.UserID)
	}
	public, err := s.publicProfile(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	projects, err := s.db.ListProjectsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	challengeIDs := uniqueIDs(projects, func(p models.Project) string { return p.ChallengeID })
	teamIDs := uniqueIDs(projects, func(p models.Project) string { return p.TeamID })

	challenges := make([]*models.Challenge, len(challengeIDs))
	teams := make([]*models.Team, len(teamIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFanout)
	for i, id := range challengeIDs {
		g.Go(func() error {
			c, err := s.db.GetChallenge(gctx, id)
			if database.IsNotFound(err) {
				return nil
			}
			challenges[i] = c
			return err
		})
	}
	for i, id := range teamIDs {
		g.Go(func() error {
			t, err := s.db.GetTeam(gctx, id)
			if database.IsNotFound(err) {
				return nil
			}
			teams[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &ParticipantDashboard{
		Profile:       profile,
		PublicProfile: public,
		Projects:      projects,
		Challenges:    make([]models.Challenge, 0, len(challenges)),
		Teams:         make([]models.Team, 0, len(teams)),
	}
	for _, c := range challenges {
		if c != nil {
			d.Challenges = append(d.Challenges, *c)
		}
	}
	for _, t := range teams {
		if t != nil {
			d.Teams = append(d.Teams, *t)
		}
	}
	return d, nil
}

// PublicProfile returns the counters of userID. A user with no activity
// gets a zero profile.
func (s *DashboardService) PublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	return s.publicProfile(ctx, userID)
}

func (s *DashboardService) publicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	p, err := s.db.GetPublicProfile(ctx, userID)
	if database.IsNotFound(err) {
		return &models.PublicProfile{ID: userID, Submissions: []string{}}, nil
	}
	return p, err
}

// uniqueIDs returns the non-empty ids key extracts, in first-seen order.
func uniqueIDs(projects []models.Project, key func(models.Project) string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range projects {
		id := key(p)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
