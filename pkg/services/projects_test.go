package services_test

import (
	"errors"
	"testing"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/matryer/is"
)

func TestSubmitIndividualProject(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedProject(t, "p1", "u1", "", "c1")

	res, err := f.svc.Projects.Submit(f.ctx, user1, "p1")
	is.NoErr(err)
	is.True(!res.Pending)
	is.Equal(res.Partial, nil)
	is.Equal(res.Project.Status, models.ProjectSubmitted)
	is.Equal(res.Submission.ID, "u1_c1")

	p, err := f.db.GetProject(f.ctx, "p1")
	is.NoErr(err)
	is.Equal(p.Status, models.ProjectSubmitted)
	is.True(p.SubmittedAt != nil)
	is.Equal(*p.SubmittedAt, f.clock.now())

	sub, err := f.db.GetSubmission(f.ctx, "u1_c1")
	is.NoErr(err)
	is.Equal(sub.Status, models.SubmissionSubmitted)
	is.Equal(sub.Progress, 100)
	is.Equal(sub.ProjectID, "p1")

	tracking, err := f.db.GetTracking(f.ctx, models.TrackingID("u1", "c1"))
	is.NoErr(err)
	is.Equal(tracking.Status, models.TrackingSubmitted)
	is.True(tracking.SubmittedAt != nil)

	profile, err := f.db.GetPublicProfile(f.ctx, "u1")
	is.NoErr(err)
	is.Equal(profile.TotalSubmissions, int64(1))
	is.Equal(profile.ProjectsCount, int64(1))
	is.Equal(profile.TotalActiveChallenges, int64(-1))
	is.Equal(profile.Submissions, []string{"u1_c1"})

	c, err := f.db.GetChallenge(f.ctx, "c1")
	is.NoErr(err)
	is.Equal(c.Participants, int64(1))

	ev, err := f.db.GetOutboxEvent(f.ctx, res.OutboxEventID)
	is.NoErr(err)
	is.Equal(ev.Status, models.OutboxProcessed)
	is.Equal(ev.Attempts, 1)
}

func TestSubmitRejectsOthersBeforeWriting(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedProject(t, "p1", "u1", "", "c1")

	_, err := f.svc.Projects.Submit(f.ctx, user2, "p1")
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))
	is.Equal(pe.UserID, "u2")

	p, err := f.db.GetProject(f.ctx, "p1")
	is.NoErr(err)
	is.Equal(p.Status, models.ProjectDraft)

	_, err = f.db.GetSubmission(f.ctx, "u1_c1")
	is.True(database.IsNotFound(err))
	_, err = f.db.GetPublicProfile(f.ctx, "u1")
	is.True(database.IsNotFound(err))
	_, err = f.db.GetPublicProfile(f.ctx, "u2")
	is.True(database.IsNotFound(err))
	pending, err := f.db.ListPendingOutbox(f.ctx, 0)
	is.NoErr(err)
	is.Equal(len(pending), 0)
}

func TestSubmitTeamProject(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedTeam(t, "t1", "c1", []string{"u2"}, []string{"u1", "u2", "u3"})
	f.seedProject(t, "p1", "u1", "t1", "c1")

	// plain members may not submit
	_, err := f.svc.Projects.Submit(f.ctx, user3, "p1")
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))

	res, err := f.svc.Projects.Submit(f.ctx, user2, "p1")
	is.NoErr(err)
	is.Equal(res.Submission.ID, "team_t1_c1")
	is.Equal(res.Submission.UserID, "u1")

	// counters go to the owner, tracking to the caller
	profile, err := f.db.GetPublicProfile(f.ctx, "u1")
	is.NoErr(err)
	is.Equal(profile.TotalSubmissions, int64(1))
	tracking, err := f.db.GetTracking(f.ctx, models.TrackingID("u2", "c1"))
	is.NoErr(err)
	is.Equal(tracking.Status, models.TrackingSubmitted)
}

func TestResubmitIsRejected(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedProject(t, "p1", "u1", "", "c1")

	_, err := f.svc.Projects.Submit(f.ctx, user1, "p1")
	is.NoErr(err)

	_, err = f.svc.Projects.Submit(f.ctx, user1, "p1")
	var te *services.TransitionError
	is.True(errors.As(err, &te))
	is.Equal(te.From, string(models.ProjectSubmitted))

	profile, err := f.db.GetPublicProfile(f.ctx, "u1")
	is.NoErr(err)
	is.Equal(profile.TotalSubmissions, int64(1))
	c, err := f.db.GetChallenge(f.ctx, "c1")
	is.NoErr(err)
	is.Equal(c.Participants, int64(1))
}

func TestSubmissionCountersAreMonotonic(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedChallenge(t, "c2", models.ChallengeOpen, 4)

	ids := []struct{ project, challenge string }{
		{"p1", "c1"}, {"p2", "c2"}, {"p3", "c1"},
	}
	for _, id := range ids {
		f.seedProject(t, id.project, "u1", "", id.challenge)
		_, err := f.svc.Projects.Submit(f.ctx, user1, id.project)
		is.NoErr(err)
	}

	profile, err := f.db.GetPublicProfile(f.ctx, "u1")
	is.NoErr(err)
	is.Equal(profile.TotalSubmissions, int64(len(ids)))
	is.Equal(profile.ProjectsCount, int64(len(ids)))
	// the submission id is per (user, challenge); the list is a set
	is.Equal(profile.Submissions, []string{"u1_c1", "u1_c2"})

	c1, err := f.db.GetChallenge(f.ctx, "c1")
	is.NoErr(err)
	is.Equal(c1.Participants, int64(2))
}

func TestSubmitMissingProject(t *testing.T) {
	is := is.New(t)
	f := setup(t)

	_, err := f.svc.Projects.Submit(f.ctx, user1, "nope")
	var nf *services.NotFoundError
	is.True(errors.As(err, &nf))
	is.Equal(nf.Kind, services.KindProject)
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestCreateAndStartProject(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedChallenge(t, "closed", models.ChallengeClosed, 4)
	f.seedTeam(t, "t1", "c1", []string{"u1"}, []string{"u1", "u2"})

	_, err := f.svc.Projects.CreateProject(f.ctx, user1, services.CreateProjectInput{ChallengeID: "closed", Title: "x"})
	var re *services.RuleError
	is.True(errors.As(err, &re))

	_, err = f.svc.Projects.CreateProject(f.ctx, user3, services.CreateProjectInput{ChallengeID: "c1", TeamID: "t1", Title: "x"})
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))

	_, err = f.svc.Projects.CreateProject(f.ctx, user1, services.CreateProjectInput{ChallengeID: "c1"})
	var ve *services.ValidationError
	is.True(errors.As(err, &ve))

	p, err := f.svc.Projects.CreateProject(f.ctx, user1, services.CreateProjectInput{ChallengeID: "c1", TeamID: "t1", Title: " Rover "})
	is.NoErr(err)
	is.Equal(p.Title, "Rover")
	is.Equal(p.Status, models.ProjectDraft)
	is.Equal(p.Visibility, models.VisibilityTeam)

	started, err := f.svc.Projects.StartProject(f.ctx, user2, p.ID)
	is.NoErr(err)
	is.Equal(started.Status, models.ProjectInProgress)

	sub, err := f.db.GetSubmission(f.ctx, "team_t1_c1")
	is.NoErr(err)
	is.Equal(sub.Status, models.SubmissionInProgress)
	is.Equal(sub.Progress, 0)

	_, err = f.svc.Projects.StartProject(f.ctx, user1, p.ID)
	var te *services.TransitionError
	is.True(errors.As(err, &te))

	got, err := f.svc.Projects.GetProject(f.ctx, user2, p.ID)
	is.NoErr(err)
	is.Equal(got.ID, p.ID)
	_, err = f.svc.Projects.GetProject(f.ctx, user3, p.ID)
	is.True(errors.As(err, &pe))

	list, err := f.svc.Projects.ListProjects(f.ctx, user2)
	is.NoErr(err)
	is.Equal(len(list), 1)
}

func TestPublicProjectIsReadable(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)

	p, err := f.svc.Projects.CreateProject(f.ctx, user1, services.CreateProjectInput{
		ChallengeID: "c1",
		Title:       "Open",
		Visibility:  models.VisibilityPublic,
	})
	is.NoErr(err)

	_, err = f.svc.Projects.GetProject(f.ctx, user3, p.ID)
	is.NoErr(err)

	// reading is not submitting
	_, err = f.svc.Projects.Submit(f.ctx, user3, p.ID)
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))
}

func TestStartKeepsSubmittedSubmission(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 4)
	f.seedProject(t, "pA", "u1", "", "c1")
	f.seedProject(t, "pB", "u1", "", "c1")

	_, err := f.svc.Projects.Submit(f.ctx, user1, "pA")
	is.NoErr(err)

	p, err := f.svc.Projects.StartProject(f.ctx, user1, "pB")
	is.NoErr(err)
	is.Equal(p.Status, models.ProjectInProgress)

	sub, err := f.db.GetSubmission(f.ctx, "u1_c1")
	is.NoErr(err)
	is.Equal(sub.Status, models.SubmissionSubmitted)
	is.Equal(sub.Progress, 100)
	is.Equal(sub.ProjectID, "pA")
}
