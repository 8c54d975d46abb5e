package services_test

import (
	"errors"
	"testing"
	"time"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPartnerTransitionApproves(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedProfile(t, models.Actor{UserID: "user1", Email: "user1@example.com", Role: models.RolePartner}, models.ProfileStatus(models.PartnerPending))
	f.seedOrg(t, "org1", "user1", models.PartnerPending)

	f.clock.advance(time.Hour)
	org, err := f.svc.Partners.Transition(f.ctx, admin, "org1", models.PartnerApproved)
	is.NoErr(err)
	is.Equal(org.Status, models.PartnerApproved)

	stored, err := f.db.GetOrganization(f.ctx, "org1")
	is.NoErr(err)
	profile, err := f.db.GetUserProfile(f.ctx, "user1")
	is.NoErr(err)

	is.Equal(stored.Status, models.PartnerApproved)
	is.Equal(string(profile.Status), string(models.PartnerApproved))
	is.Equal(stored.UpdatedAt, f.clock.now())
	is.Equal(stored.UpdatedAt, profile.UpdatedAt)

	is.Equal(testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("approved", "ok")), float64(1))
}

func TestPartnerTransitionMissingProfile(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedOrg(t, "org1", "ghost", models.PartnerPending)

	_, err := f.svc.Partners.Transition(f.ctx, admin, "org1", models.PartnerApproved)
	var nf *services.NotFoundError
	is.True(errors.As(err, &nf))
	is.Equal(nf.Kind, services.KindProfile)
	is.Equal(nf.ID, "ghost")

	stored, err := f.db.GetOrganization(f.ctx, "org1")
	is.NoErr(err)
	is.Equal(stored.Status, models.PartnerPending)
}

func TestPartnerTransitionMissingOrganization(t *testing.T) {
	is := is.New(t)
	f := setup(t)

	_, err := f.svc.Partners.Transition(f.ctx, admin, "nope", models.PartnerApproved)
	var nf *services.NotFoundError
	is.True(errors.As(err, &nf))
	is.Equal(nf.Kind, services.KindOrganization)
}

func TestPartnerTransitionTable(t *testing.T) {
	f := setup(t)
	owner := models.Actor{UserID: "owner", Email: "owner@example.com", Role: models.RolePartner}
	f.seedProfile(t, owner, models.ProfileStatus(models.PartnerPending))
	f.seedOrg(t, "org1", owner.UserID, models.PartnerPending)

	steps := []struct {
		to models.PartnerStatus
		ok bool
	}{
		{models.PartnerSuspended, false},
		{models.PartnerApproved, true},
		{models.PartnerApproved, false},
		{models.PartnerSuspended, true},
		{models.PartnerApproved, true},
		{models.PartnerRejected, false},
	}
	for _, step := range steps {
		_, err := f.svc.Partners.Transition(f.ctx, admin, "org1", step.to)
		if step.ok && err != nil {
			t.Fatalf("transition to %s: %v", step.to, err)
		}
		if !step.ok {
			var te *services.TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("transition to %s: expected TransitionError, got %v", step.to, err)
			}
		}
	}
}

func TestPartnerTransitionRequiresAdmin(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	owner := models.Actor{UserID: "owner", Email: "owner@example.com", Role: models.RolePartner}
	f.seedProfile(t, owner, models.ProfileStatus(models.PartnerPending))
	f.seedOrg(t, "org1", owner.UserID, models.PartnerPending)

	_, err := f.svc.Partners.Transition(f.ctx, owner, "org1", models.PartnerApproved)
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))

	stored, err := f.db.GetOrganization(f.ctx, "org1")
	is.NoErr(err)
	is.Equal(stored.Status, models.PartnerPending)

	_, err = f.svc.Partners.Transition(f.ctx, admin, "org1", models.PartnerPending)
	var ve *services.ValidationError
	is.True(errors.As(err, &ve))
}

func TestPartnerApply(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	f.seedProfile(t, user1, models.ProfileActive)

	org, err := f.svc.Partners.Apply(f.ctx, user1, services.ApplyInput{Name: " Acme ", Email: "Team@Acme.io", Type: "company"})
	is.NoErr(err)
	is.Equal(org.Name, "Acme")
	is.Equal(org.Email, "team@acme.io")
	is.Equal(org.Status, models.PartnerPending)
	is.Equal(org.CreatedBy, user1.UserID)

	profile, err := f.db.GetUserProfile(f.ctx, user1.UserID)
	is.NoErr(err)
	is.Equal(profile.Role, models.RolePartner)
	is.Equal(string(profile.Status), string(models.PartnerPending))

	_, err = f.svc.Partners.Apply(f.ctx, user1, services.ApplyInput{Name: "Again", Email: "a@acme.io"})
	var re *services.RuleError
	is.True(errors.As(err, &re))
	is.Equal(re.Rule, "already_applied")

	got, err := f.svc.Partners.Get(f.ctx, user1, org.ID)
	is.NoErr(err)
	is.Equal(got.ID, org.ID)

	_, err = f.svc.Partners.Get(f.ctx, user2, org.ID)
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))
}

func TestPartnerCacheUpdatedAfterCommit(t *testing.T) {
	is := is.New(t)
	f := setup(t)
	owner := models.Actor{UserID: "owner", Email: "owner@example.com", Role: models.RolePartner}
	f.seedProfile(t, owner, models.ProfileStatus(models.PartnerPending))
	f.seedOrg(t, "org1", owner.UserID, models.PartnerPending)
	f.seedOrg(t, "org2", "ghost", models.PartnerPending)

	list, err := f.svc.Partners.List(f.ctx, admin, models.PartnerPending)
	is.NoErr(err)
	is.Equal(len(list), 2)

	// org2 has no profile: the transition aborts and the cached entry stays pending
	_, err = f.svc.Partners.Transition(f.ctx, admin, "org2", models.PartnerApproved)
	is.True(err != nil)
	got, err := f.svc.Partners.Get(f.ctx, admin, "org2")
	is.NoErr(err)
	is.Equal(got.Status, models.PartnerPending)

	_, err = f.svc.Partners.Approve(f.ctx, admin, "org1")
	is.NoErr(err)
	got, err = f.svc.Partners.Get(f.ctx, admin, "org1")
	is.NoErr(err)
	is.Equal(got.Status, models.PartnerApproved)

	_, err = f.svc.Partners.List(f.ctx, user1, "")
	var pe *services.PermissionError
	is.True(errors.As(err, &pe))
}
