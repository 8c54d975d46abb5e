package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"challenge-hub-backend/pkg/models"
)

// Collection names shared by every backend.
const (
	CollOrganizations = "organizations"
	CollUsers         = "users"
	CollCredentials   = "credentials"
	CollProjects      = "projects"
	CollSubmissions   = "submissions"
	CollTracking      = "challenge_tracking"
	CollProfiles      = "public_profiles"
	CollChallenges    = "challenges"
	CollTeams         = "teams"
	CollInvitations   = "team_invitations"
	CollOutbox        = "outbox"
)

// docMeta holds the indexed fields stored next to a document body.
type docMeta struct {
	Owner  string
	Group  string
	Status string
}

// docFilter matches documents whose non-empty fields equal the meta fields.
type docFilter docMeta

func (f docFilter) match(m docMeta) bool {
	return (f.Owner == "" || f.Owner == m.Owner) &&
		(f.Group == "" || f.Group == m.Group) &&
		(f.Status == "" || f.Status == m.Status)
}

// rawStore is the byte-level document store behind LocalDatabase and SQLDatabase.
type rawStore interface {
	get(ctx context.Context, coll, id string) ([]byte, error)
	insert(ctx context.Context, coll, id string, meta docMeta, data []byte) error
	put(ctx context.Context, coll, id string, meta docMeta, data []byte) error
	list(ctx context.Context, coll string, f docFilter) ([][]byte, error)
}

// docOps implements Tx and the list queries on top of a rawStore.
type docOps struct {
	raw rawStore
}

func getDoc[T any](ctx context.Context, raw rawStore, coll, id string) (*T, error) {
	data, err := raw.get(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	return decodeDoc[T](coll, id, data)
}

func decodeDoc[T any](coll, id string, data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, id, err)
	}
	if err := models.Validate(&v); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, id, err)
	}
	return &v, nil
}

func encodeDoc(coll, id string, v interface{}) ([]byte, error) {
	if err := models.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, id, err)
	}
	return json.Marshal(v)
}

func insertDoc(ctx context.Context, raw rawStore, coll, id string, meta docMeta, v interface{}) error {
	data, err := encodeDoc(coll, id, v)
	if err != nil {
		return err
	}
	return raw.insert(ctx, coll, id, meta, data)
}

func putDoc(ctx context.Context, raw rawStore, coll, id string, meta docMeta, v interface{}) error {
	data, err := encodeDoc(coll, id, v)
	if err != nil {
		return err
	}
	return raw.put(ctx, coll, id, meta, data)
}

func listDocs[T any](ctx context.Context, raw rawStore, coll string, f docFilter) ([]T, error) {
	rows, err := raw.list(ctx, coll, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, data := range rows {
		v, err := decodeDoc[T](coll, "", data)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func organizationMeta(o *models.Organization) docMeta {
	return docMeta{Owner: o.CreatedBy, Status: string(o.Status)}
}

func projectMeta(p *models.Project) docMeta {
	return docMeta{Owner: p.UserID, Group: p.TeamID, Status: string(p.Status)}
}

func invitationMeta(inv *models.TeamInvitation) docMeta {
	return docMeta{Owner: inv.Email, Group: inv.TeamID, Status: string(inv.Status)}
}

func (o docOps) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return getDoc[models.Organization](ctx, o.raw, CollOrganizations, id)
}

func (o docOps) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	return getDoc[models.UserProfile](ctx, o.raw, CollUsers, id)
}

func (o docOps) GetCredential(ctx context.Context, email string) (*models.Credential, error) {
	return getDoc[models.Credential](ctx, o.raw, CollCredentials, email)
}

func (o docOps) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return getDoc[models.Project](ctx, o.raw, CollProjects, id)
}

func (o docOps) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return getDoc[models.Submission](ctx, o.raw, CollSubmissions, id)
}

func (o docOps) GetTracking(ctx context.Context, id string) (*models.ChallengeTracking, error) {
	return getDoc[models.ChallengeTracking](ctx, o.raw, CollTracking, id)
}

func (o docOps) GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	return getDoc[models.PublicProfile](ctx, o.raw, CollProfiles, userID)
}

func (o docOps) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	return getDoc[models.Challenge](ctx, o.raw, CollChallenges, id)
}

func (o docOps) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return getDoc[models.Team](ctx, o.raw, CollTeams, id)
}

func (o docOps) GetInvitation(ctx context.Context, id string) (*models.TeamInvitation, error) {
	return getDoc[models.TeamInvitation](ctx, o.raw, CollInvitations, id)
}

func (o docOps) GetOutboxEvent(ctx context.Context, id string) (*models.OutboxEvent, error) {
	return getDoc[models.OutboxEvent](ctx, o.raw, CollOutbox, id)
}

func (o docOps) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return insertDoc(ctx, o.raw, CollOrganizations, org.ID, organizationMeta(org), org)
}

func (o docOps) SetOrganizationStatus(ctx context.Context, id string, status models.PartnerStatus, at time.Time) error {
	org, err := o.GetOrganization(ctx, id)
	if err != nil {
		return err
	}
	org.Status = status
	org.UpdatedAt = at
	return putDoc(ctx, o.raw, CollOrganizations, id, organizationMeta(org), org)
}

func (o docOps) CreateUserProfile(ctx context.Context, p *models.UserProfile) error {
	return insertDoc(ctx, o.raw, CollUsers, p.ID, docMeta{Owner: p.Email, Status: string(p.Role)}, p)
}

func (o docOps) SaveUserProfile(ctx context.Context, p *models.UserProfile) error {
	return putDoc(ctx, o.raw, CollUsers, p.ID, docMeta{Owner: p.Email, Status: string(p.Role)}, p)
}

func (o docOps) SetUserProfileStatus(ctx context.Context, id string, status models.ProfileStatus, at time.Time) error {
	p, err := o.GetUserProfile(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	p.UpdatedAt = at
	return o.SaveUserProfile(ctx, p)
}

func (o docOps) CreateCredential(ctx context.Context, c *models.Credential) error {
	return insertDoc(ctx, o.raw, CollCredentials, c.ID, docMeta{Owner: c.UserID}, c)
}

func (o docOps) CreateProject(ctx context.Context, p *models.Project) error {
	return insertDoc(ctx, o.raw, CollProjects, p.ID, projectMeta(p), p)
}

func (o docOps) SaveProject(ctx context.Context, p *models.Project) error {
	return putDoc(ctx, o.raw, CollProjects, p.ID, projectMeta(p), p)
}

func (o docOps) MergeSubmission(ctx context.Context, s *models.Submission) error {
	existing, err := o.GetSubmission(ctx, s.ID)
	switch {
	case err == nil:
		s.CreatedAt = existing.CreatedAt
	case !IsNotFound(err):
		return err
	}
	meta := docMeta{Owner: s.UserID, Group: s.ChallengeID, Status: string(s.Status)}
	return putDoc(ctx, o.raw, CollSubmissions, s.ID, meta, s)
}

func (o docOps) CreateTracking(ctx context.Context, t *models.ChallengeTracking) error {
	meta := docMeta{Owner: t.UserID, Group: t.ChallengeID, Status: string(t.Status)}
	return insertDoc(ctx, o.raw, CollTracking, t.ID, meta, t)
}

func (o docOps) MergeTracking(ctx context.Context, t *models.ChallengeTracking) error {
	existing, err := o.GetTracking(ctx, t.ID)
	switch {
	case err == nil:
		t.JoinedAt = existing.JoinedAt
	case !IsNotFound(err):
		return err
	}
	meta := docMeta{Owner: t.UserID, Group: t.ChallengeID, Status: string(t.Status)}
	return putDoc(ctx, o.raw, CollTracking, t.ID, meta, t)
}

func (o docOps) IncrementPublicProfile(ctx context.Context, userID string, delta models.ProfileDelta, at time.Time) error {
	p, err := o.GetPublicProfile(ctx, userID)
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		p = &models.PublicProfile{ID: userID, Submissions: []string{}}
	}
	delta.Apply(p)
	p.UpdatedAt = at
	return putDoc(ctx, o.raw, CollProfiles, userID, docMeta{}, p)
}

func (o docOps) CreateChallenge(ctx context.Context, c *models.Challenge) error {
	return insertDoc(ctx, o.raw, CollChallenges, c.ID, docMeta{Owner: c.PartnerID, Status: string(c.Status)}, c)
}

func (o docOps) IncrementChallengeParticipants(ctx context.Context, id string, n int64, at time.Time) error {
	c, err := o.GetChallenge(ctx, id)
	if err != nil {
		return err
	}
	c.Participants += n
	c.UpdatedAt = at
	return putDoc(ctx, o.raw, CollChallenges, id, docMeta{Owner: c.PartnerID, Status: string(c.Status)}, c)
}

func (o docOps) CreateTeam(ctx context.Context, t *models.Team) error {
	return insertDoc(ctx, o.raw, CollTeams, t.ID, docMeta{Owner: t.CreatedBy, Group: t.ChallengeID}, t)
}

func (o docOps) SaveTeam(ctx context.Context, t *models.Team) error {
	return putDoc(ctx, o.raw, CollTeams, t.ID, docMeta{Owner: t.CreatedBy, Group: t.ChallengeID}, t)
}

func (o docOps) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error {
	return insertDoc(ctx, o.raw, CollInvitations, inv.ID, invitationMeta(inv), inv)
}

func (o docOps) SaveInvitation(ctx context.Context, inv *models.TeamInvitation) error {
	return putDoc(ctx, o.raw, CollInvitations, inv.ID, invitationMeta(inv), inv)
}

func (o docOps) CreateOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error {
	return insertDoc(ctx, o.raw, CollOutbox, ev.ID, docMeta{Group: ev.ChallengeID, Status: string(ev.Status)}, ev)
}

func (o docOps) SaveOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error {
	return putDoc(ctx, o.raw, CollOutbox, ev.ID, docMeta{Group: ev.ChallengeID, Status: string(ev.Status)}, ev)
}

func (o docOps) ListOrganizations(ctx context.Context, status models.PartnerStatus) ([]models.Organization, error) {
	orgs, err := listDocs[models.Organization](ctx, o.raw, CollOrganizations, docFilter{Status: string(status)})
	if err != nil {
		return nil, err
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.After(orgs[j].CreatedAt) })
	return orgs, nil
}

func (o docOps) ListOrganizationsByCreator(ctx context.Context, userID string) ([]models.Organization, error) {
	orgs, err := listDocs[models.Organization](ctx, o.raw, CollOrganizations, docFilter{Owner: userID})
	if err != nil {
		return nil, err
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.After(orgs[j].CreatedAt) })
	return orgs, nil
}

func (o docOps) ListProjectsByUser(ctx context.Context, userID string) ([]models.Project, error) {
	projects, err := listDocs[models.Project](ctx, o.raw, CollProjects, docFilter{Owner: userID})
	if err != nil {
		return nil, err
	}
	sortProjects(projects)
	return projects, nil
}

func (o docOps) ListProjectsByTeam(ctx context.Context, teamID string) ([]models.Project, error) {
	projects, err := listDocs[models.Project](ctx, o.raw, CollProjects, docFilter{Group: teamID})
	if err != nil {
		return nil, err
	}
	sortProjects(projects)
	return projects, nil
}

func sortProjects(projects []models.Project) {
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
}

// ListTeamsByMember scans the team collection; membership is an array field
// and is not part of the indexed meta.
func (o docOps) ListTeamsByMember(ctx context.Context, userID string) ([]models.Team, error) {
	teams, err := listDocs[models.Team](ctx, o.raw, CollTeams, docFilter{})
	if err != nil {
		return nil, err
	}
	var out []models.Team
	for _, t := range teams {
		if t.IsMember(userID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (o docOps) ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	challenges, err := listDocs[models.Challenge](ctx, o.raw, CollChallenges, docFilter{Status: string(status)})
	if err != nil {
		return nil, err
	}
	sort.Slice(challenges, func(i, j int) bool { return challenges[i].CreatedAt.After(challenges[j].CreatedAt) })
	return challenges, nil
}

func (o docOps) ListInvitationsByEmail(ctx context.Context, email string) ([]models.TeamInvitation, error) {
	invs, err := listDocs[models.TeamInvitation](ctx, o.raw, CollInvitations, docFilter{Owner: email})
	if err != nil {
		return nil, err
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}

func (o docOps) ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	events, err := listDocs[models.OutboxEvent](ctx, o.raw, CollOutbox, docFilter{Status: string(models.OutboxPending)})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
