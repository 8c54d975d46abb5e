package services_test

import (
	"errors"
	"testing"
	"time"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/matryer/is"
)

func TestInvitationAccept(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 3)

	team, err := f.svc.Teams.Create(f.ctx, user1, services.CreateTeamInput{Name: "Rovers", ChallengeID: "c1"})
	is.NoErr(err)
	is.Equal(team.Members, []string{"u1"})
	is.Equal(team.Admins, []string{"u1"})

	_, err = f.svc.Teams.Invite(f.ctx, user2, team.ID, user3.Email)
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))

	inv, err := f.svc.Teams.Invite(f.ctx, user1, team.ID, " U2@Example.com ")
	is.NoErr(err)
	is.Equal(inv.Email, "u2@example.com")
	is.Equal(inv.Status, models.InvitationPending)
	is.Equal(inv.ExpiresAt, f.clock.now().Add(14*24*time.Hour))
	is.True(len(inv.ID) >= 32)

	// addressed to someone else
	_, err = f.svc.Teams.Accept(f.ctx, user3, inv.ID)
	is.True(errors.As(err, &pe))

	mine, err := f.svc.Teams.ListMyInvitations(f.ctx, user2)
	is.NoErr(err)
	is.Equal(len(mine), 1)

	joined, err := f.svc.Teams.Accept(f.ctx, user2, inv.ID)
	is.NoErr(err)
	is.Equal(joined.Members, []string{"u1", "u2"})

	stored, err := f.db.GetInvitation(f.ctx, inv.ID)
	is.NoErr(err)
	is.Equal(stored.Status, models.InvitationAccepted)
	is.Equal(stored.AcceptedBy, "u2")

	_, err = f.svc.Teams.Accept(f.ctx, user2, inv.ID)
	var te *services.TransitionError
	is.True(errors.As(err, &te))

	got, err := f.svc.Teams.Get(f.ctx, user2, team.ID)
	is.NoErr(err)
	is.Equal(len(got.Members), 2)
	_, err = f.svc.Teams.Get(f.ctx, user3, team.ID)
	is.True(errors.As(err, &pe))
}

func TestInvitationExpires(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedTeam(t, "t1", "", []string{"u1"}, []string{"u1"})

	inv, err := f.svc.Teams.Invite(f.ctx, user1, "t1", user2.Email)
	is.NoErr(err)

	f.clock.advance(15 * 24 * time.Hour)
	mine, err := f.svc.Teams.ListMyInvitations(f.ctx, user2)
	is.NoErr(err)
	is.Equal(mine[0].Status, models.InvitationExpired)

	_, err = f.svc.Teams.Accept(f.ctx, user2, inv.ID)
	var re *services.RuleError
	is.True(errors.As(err, &re))
	is.Equal(re.Rule, "invitation_expired")

	stored, err := f.db.GetInvitation(f.ctx, inv.ID)
	is.NoErr(err)
	is.Equal(stored.Status, models.InvitationExpired)

	team, err := f.db.GetTeam(f.ctx, "t1")
	is.NoErr(err)
	is.Equal(team.Members, []string{"u1"})
}

func TestInvitationTeamFull(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedChallenge(t, "c1", models.ChallengeOpen, 2)
	f.seedTeam(t, "t1", "c1", []string{"u1"}, []string{"u1", "u2"})

	inv, err := f.svc.Teams.Invite(f.ctx, user1, "t1", user3.Email)
	is.NoErr(err)

	_, err = f.svc.Teams.Accept(f.ctx, user3, inv.ID)
	var re *services.RuleError
	is.True(errors.As(err, &re))
	is.Equal(re.Rule, "team_full")

	stored, err := f.db.GetInvitation(f.ctx, inv.ID)
	is.NoErr(err)
	is.Equal(stored.Status, models.InvitationPending)
}

func TestInvitationDecline(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedTeam(t, "t1", "", []string{"u1"}, []string{"u1"})

	inv, err := f.svc.Teams.Invite(f.ctx, user1, "t1", user2.Email)
	is.NoErr(err)

	declined, err := f.svc.Teams.Decline(f.ctx, user2, inv.ID)
	is.NoErr(err)
	is.Equal(declined.Status, models.InvitationDeclined)

	_, err = f.svc.Teams.Accept(f.ctx, user2, inv.ID)
	var te *services.TransitionError
	is.True(errors.As(err, &te))

	_, err = f.svc.Teams.Decline(f.ctx, user2, "missing")
	var nf *services.NotFoundError
	is.True(errors.As(err, &nf))
	is.Equal(nf.Kind, services.KindInvitation)
}
