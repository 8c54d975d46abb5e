package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"challenge-hub-backend/pkg/config"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"

	"github.com/charmbracelet/log"
	"github.com/matryer/is"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
	deps   *Deps
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	is := is.New(t)
	ctx := context.Background()

	db, err := database.NewLocalDatabase(ctx, "")
	is.NoErr(err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.Environment = "test"
	cfg.JWTSecret = "test-secret"

	deps, err := NewDeps(cfg, db, log.New(io.Discard))
	is.NoErr(err)
	return &testServer{t: t, router: NewRouter(deps), deps: deps}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, apiResponse) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			s.t.Fatal(err)
		}
	}
	return rec.Code, resp
}

// register signs up a participant and returns its id and access token.
func (s *testServer) register(email string) (string, string) {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	if code != http.StatusCreated {
		s.t.Fatalf("register %s: status %d", email, code)
	}
	var login models.UserLoginResponse
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		s.t.Fatal(err)
	}
	return login.User.ID, login.AccessToken
}

// adminToken seeds an admin profile and signs a token for it.
func (s *testServer) adminToken() string {
	s.t.Helper()
	now := time.Now().UTC()
	err := s.deps.DB.CreateUserProfile(context.Background(), &models.UserProfile{
		ID:        "admin1",
		Email:     "admin@example.com",
		Role:      models.RoleAdmin,
		Status:    models.ProfileActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.t.Fatal(err)
	}
	token, _, err := s.deps.Services.Auth.JWT().GenerateAccessToken("admin1", "admin@example.com", models.RoleAdmin)
	if err != nil {
		s.t.Fatal(err)
	}
	return token
}

func decode(t *testing.T, data json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndRouting(t *testing.T) {
	is := is.New(t)
	s := newTestServer(t)

	code, resp := s.do(http.MethodGet, "/", "", nil)
	is.Equal(code, http.StatusOK)
	is.True(resp.Success)

	code, resp = s.do(http.MethodGet, "/api/nope", "", nil)
	is.Equal(code, http.StatusNotFound)
	is.Equal(resp.Error.Code, "NOT_FOUND")

	code, _ = s.do(http.MethodGet, "/api/projects", "", nil)
	is.Equal(code, http.StatusUnauthorized)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	is.Equal(rec.Code, http.StatusOK)
}

func TestAuthEndpoints(t *testing.T) {
	is := is.New(t)
	s := newTestServer(t)

	s.register("alice@example.com")

	code, resp := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	is.Equal(code, http.StatusConflict)
	is.True(!resp.Success)

	code, _ = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "password123",
	})
	is.Equal(code, http.StatusBadRequest)

	code, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	is.Equal(code, http.StatusUnauthorized)

	code, resp = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	is.Equal(code, http.StatusOK)
	var login models.UserLoginResponse
	decode(t, resp.Data, &login)

	code, _ = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	is.Equal(code, http.StatusOK)
	code, _ = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.AccessToken})
	is.Equal(code, http.StatusUnauthorized)
}

func TestPartnerEndpoints(t *testing.T) {
	is := is.New(t)
	s := newTestServer(t)
	admin := s.adminToken()
	_, token := s.register("bob@example.com")

	code, resp := s.do(http.MethodPost, "/api/partners/apply", token, map[string]string{
		"name":  "Acme",
		"email": "hello@acme.test",
	})
	is.Equal(code, http.StatusCreated)
	var applied struct {
		Organization models.Organization `json:"organization"`
	}
	decode(t, resp.Data, &applied)
	is.Equal(applied.Organization.Status, models.PartnerPending)

	// 再次申请违反业务规则
	code, resp = s.do(http.MethodPost, "/api/partners/apply", token, map[string]string{
		"name":  "Acme",
		"email": "hello@acme.test",
	})
	is.Equal(code, http.StatusUnprocessableEntity)
	is.Equal(resp.Error.Code, "already_applied")

	code, _ = s.do(http.MethodGet, "/api/admin/partners", token, nil)
	is.Equal(code, http.StatusForbidden)

	statusPath := "/api/admin/partners/" + applied.Organization.ID + "/status"
	code, _ = s.do(http.MethodPost, statusPath, admin, map[string]string{"status": "bogus"})
	is.Equal(code, http.StatusBadRequest)

	code, resp = s.do(http.MethodPost, statusPath, admin, map[string]string{"status": "approved"})
	is.Equal(code, http.StatusOK)
	var approved struct {
		Organization models.Organization `json:"organization"`
	}
	decode(t, resp.Data, &approved)
	is.Equal(approved.Organization.Status, models.PartnerApproved)

	code, _ = s.do(http.MethodPost, statusPath, admin, map[string]string{"status": "pending"})
	is.Equal(code, http.StatusBadRequest)

	code, _ = s.do(http.MethodPost, "/api/admin/partners/missing/status", admin, map[string]string{"status": "approved"})
	is.Equal(code, http.StatusNotFound)

	code, resp = s.do(http.MethodGet, "/api/admin/partners?status=approved", admin, nil)
	is.Equal(code, http.StatusOK)
	var list struct {
		Organizations []models.Organization `json:"organizations"`
	}
	decode(t, resp.Data, &list)
	is.Equal(len(list.Organizations), 1)

	code, _ = s.do(http.MethodGet, "/api/partners/"+applied.Organization.ID, token, nil)
	is.Equal(code, http.StatusOK)
}

func TestSubmissionEndpoints(t *testing.T) {
	is := is.New(t)
	s := newTestServer(t)
	admin := s.adminToken()
	userID, token := s.register("carol@example.com")

	code, _ := s.do(http.MethodPost, "/api/challenges", token, map[string]interface{}{"title": "Nope"})
	is.Equal(code, http.StatusForbidden)

	code, resp := s.do(http.MethodPost, "/api/challenges", admin, map[string]interface{}{
		"title":  "Build a bot",
		"status": "open",
	})
	is.Equal(code, http.StatusCreated)
	var created struct {
		Challenge models.Challenge `json:"challenge"`
	}
	decode(t, resp.Data, &created)
	challengeID := created.Challenge.ID

	code, _ = s.do(http.MethodGet, "/api/challenges/"+challengeID, "", nil)
	is.Equal(code, http.StatusOK)

	code, _ = s.do(http.MethodPost, "/api/challenges/"+challengeID+"/join", token, nil)
	is.Equal(code, http.StatusOK)

	code, resp = s.do(http.MethodPost, "/api/projects", token, map[string]string{
		"challengeId": challengeID,
		"title":       "My bot",
	})
	is.Equal(code, http.StatusCreated)
	var project struct {
		Project models.Project `json:"project"`
	}
	decode(t, resp.Data, &project)
	projectPath := "/api/projects/" + project.Project.ID

	code, _ = s.do(http.MethodPost, projectPath+"/start", token, nil)
	is.Equal(code, http.StatusOK)

	code, resp = s.do(http.MethodPost, projectPath+"/submit", token, nil)
	is.Equal(code, http.StatusOK)
	var submitted struct {
		Project    models.Project    `json:"project"`
		Submission models.Submission `json:"submission"`
		Pending    bool              `json:"pending"`
	}
	decode(t, resp.Data, &submitted)
	is.Equal(submitted.Project.Status, models.ProjectSubmitted)
	is.True(!submitted.Pending)

	code, resp = s.do(http.MethodPost, projectPath+"/submit", token, nil)
	is.Equal(code, http.StatusConflict)
	is.Equal(resp.Error.Code, "INVALID_TRANSITION")

	code, resp = s.do(http.MethodGet, "/api/profiles/"+userID, "", nil)
	is.Equal(code, http.StatusOK)
	var profile struct {
		Profile models.PublicProfile `json:"profile"`
	}
	decode(t, resp.Data, &profile)
	is.Equal(profile.Profile.TotalSubmissions, int64(1))
	is.Equal(profile.Profile.TotalActiveChallenges, int64(0))

	code, resp = s.do(http.MethodGet, "/api/challenges/"+challengeID, "", nil)
	is.Equal(code, http.StatusOK)
	decode(t, resp.Data, &created)
	is.Equal(created.Challenge.Participants, int64(1))

	code, _ = s.do(http.MethodGet, "/api/dashboard", token, nil)
	is.Equal(code, http.StatusOK)
}

func TestInvitationEndpoints(t *testing.T) {
	is := is.New(t)
	s := newTestServer(t)
	_, owner := s.register("dave@example.com")
	_, invitee := s.register("erin@example.com")

	code, resp := s.do(http.MethodPost, "/api/teams", owner, map[string]string{"name": "Rockets"})
	is.Equal(code, http.StatusCreated)
	var team struct {
		Team models.Team `json:"team"`
	}
	decode(t, resp.Data, &team)

	code, _ = s.do(http.MethodPost, "/api/teams/"+team.Team.ID+"/invitations", invitee, map[string]string{"email": "dave@example.com"})
	is.Equal(code, http.StatusForbidden)

	code, resp = s.do(http.MethodPost, "/api/teams/"+team.Team.ID+"/invitations", owner, map[string]string{"email": "erin@example.com"})
	is.Equal(code, http.StatusCreated)
	var invited struct {
		Invitation models.TeamInvitation `json:"invitation"`
	}
	decode(t, resp.Data, &invited)

	code, resp = s.do(http.MethodGet, "/api/invitations/my", invitee, nil)
	is.Equal(code, http.StatusOK)
	var mine struct {
		Invitations []models.TeamInvitation `json:"invitations"`
	}
	decode(t, resp.Data, &mine)
	is.Equal(len(mine.Invitations), 1)

	code, _ = s.do(http.MethodPost, "/api/invitations/accept", owner, map[string]string{"token": invited.Invitation.ID})
	is.Equal(code, http.StatusForbidden)

	code, resp = s.do(http.MethodPost, "/api/invitations/accept", invitee, map[string]string{"token": invited.Invitation.ID})
	is.Equal(code, http.StatusOK)
	decode(t, resp.Data, &team)
	is.Equal(len(team.Team.Members), 2)

	code, _ = s.do(http.MethodPost, "/api/invitations/decline", invitee, map[string]string{"token": invited.Invitation.ID})
	is.Equal(code, http.StatusConflict)

	code, _ = s.do(http.MethodGet, "/api/teams/"+team.Team.ID, invitee, nil)
	is.Equal(code, http.StatusOK)
}
