package services_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/metrics"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/charmbracelet/log"
	"github.com/matryer/is"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx      context.Context
	db       database.DatabaseInterface
	enforcer *authz.Enforcer
	clock    *clock
	metrics  *metrics.Metrics
	svc      *services.Services
}

var (
	admin = models.Actor{UserID: "admin1", Email: "admin@example.com", Role: models.RoleAdmin}
	user1 = models.Actor{UserID: "u1", Email: "u1@example.com", Role: models.RoleParticipant}
	user2 = models.Actor{UserID: "u2", Email: "u2@example.com", Role: models.RoleParticipant}
	user3 = models.Actor{UserID: "u3", Email: "u3@example.com", Role: models.RoleParticipant}
)

func setup(t *testing.T) *fixture {
	t.Helper()
	is := is.New(t)
	ctx := context.Background()

	db, err := database.NewLocalDatabase(ctx, "")
	is.NoErr(err)
	enforcer, err := authz.NewEnforcer(nil)
	is.NoErr(err)

	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := metrics.New()
	svc, err := services.New(services.Options{
		DB:      db,
		Authz:   enforcer,
		Metrics: m,
		Logger:  log.New(io.Discard),
		Now:     clk.now,
	}, "test-secret", 16)
	is.NoErr(err)

	return &fixture{ctx: ctx, db: db, enforcer: enforcer, clock: clk, metrics: m, svc: svc}
}

func (f *fixture) seedProfile(t *testing.T, a models.Actor, status models.ProfileStatus) {
	t.Helper()
	now := f.clock.now()
	err := f.db.CreateUserProfile(f.ctx, &models.UserProfile{
		ID:        a.UserID,
		Email:     a.Email,
		Role:      a.Role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedOrg(t *testing.T, id, createdBy string, status models.PartnerStatus) {
	t.Helper()
	now := f.clock.now()
	err := f.db.CreateOrganization(f.ctx, &models.Organization{
		ID:        id,
		Name:      "Org " + id,
		Email:     id + "@example.com",
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedChallenge(t *testing.T, id string, status models.ChallengeStatus, maxTeamSize int) {
	t.Helper()
	now := f.clock.now()
	err := f.db.CreateChallenge(f.ctx, &models.Challenge{
		ID:          id,
		Title:       "Challenge " + id,
		Status:      status,
		MaxTeamSize: maxTeamSize,
		CreatedBy:   admin.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedProject(t *testing.T, id, userID, teamID, challengeID string) {
	t.Helper()
	now := f.clock.now()
	err := f.db.CreateProject(f.ctx, &models.Project{
		ID:          id,
		UserID:      userID,
		TeamID:      teamID,
		ChallengeID: challengeID,
		Title:       "Project " + id,
		Status:      models.ProjectDraft,
		Visibility:  models.VisibilityPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedTeam(t *testing.T, id, challengeID string, admins, members []string) {
	t.Helper()
	now := f.clock.now()
	err := f.db.CreateTeam(f.ctx, &models.Team{
		ID:          id,
		Name:        "Team " + id,
		ChallengeID: challengeID,
		Members:     members,
		Admins:      admins,
		CreatedBy:   admins[0],
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
}
