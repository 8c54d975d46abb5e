package services_test

import (
	"errors"
	"testing"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/matryer/is"
)

func TestRegisterLoginRefresh(t *testing.T) {
	is := is.New(t)
	f := setup(t)

	reg, err := f.svc.Auth.Register(f.ctx, models.UserRegisterRequest{
		Email:       "Ada@Example.com",
		Password:    "correct horse",
		DisplayName: "Ada",
	})
	is.NoErr(err)
	is.Equal(reg.User.Email, "ada@example.com")
	is.Equal(reg.User.Role, models.RoleParticipant)
	is.Equal(reg.User.Status, models.ProfileActive)
	is.True(reg.AccessToken != "")
	is.True(reg.RefreshToken != "")

	_, err = f.svc.Auth.Register(f.ctx, models.UserRegisterRequest{Email: "ada@example.com", Password: "another one"})
	is.True(errors.Is(err, services.ErrEmailTaken))

	_, err = f.svc.Auth.Register(f.ctx, models.UserRegisterRequest{Email: "bob@example.com", Password: "short"})
	var ve *services.ValidationError
	is.True(errors.As(err, &ve))

	_, err = f.svc.Auth.Login(f.ctx, models.UserLoginRequest{Email: "ada@example.com", Password: "wrong password"})
	is.True(errors.Is(err, services.ErrInvalidCredentials))
	_, err = f.svc.Auth.Login(f.ctx, models.UserLoginRequest{Email: "nobody@example.com", Password: "whatever"})
	is.True(errors.Is(err, services.ErrInvalidCredentials))

	login, err := f.svc.Auth.Login(f.ctx, models.UserLoginRequest{Email: "ADA@example.com", Password: "correct horse"})
	is.NoErr(err)
	is.Equal(login.User.ID, reg.User.ID)

	actor, err := f.svc.Auth.JWT().ExtractActor(login.AccessToken)
	is.NoErr(err)
	is.Equal(actor.UserID, reg.User.ID)
	is.Equal(actor.Role, models.RoleParticipant)

	// the refresh picks up the new role after a partner application
	_, err = f.svc.Partners.Apply(f.ctx, actor, services.ApplyInput{Name: "Ada Labs", Email: "labs@example.com"})
	is.NoErr(err)
	refreshed, err := f.svc.Auth.Refresh(f.ctx, login.RefreshToken)
	is.NoErr(err)
	is.Equal(refreshed.User.Role, models.RolePartner)

	_, err = f.svc.Auth.Refresh(f.ctx, login.AccessToken)
	is.True(errors.Is(err, services.ErrInvalidCredentials))
}

func TestEnsureAdmin(t *testing.T) {
	is := is.New(t)
	f := setup(t)

	p, err := f.svc.Auth.EnsureAdmin(f.ctx, "Root@Example.com", "super secret")
	is.NoErr(err)
	is.Equal(p.Role, models.RoleAdmin)
	is.Equal(p.Email, "root@example.com")

	// 已存在的账号只提升角色
	again, err := f.svc.Auth.EnsureAdmin(f.ctx, "root@example.com", "ignored password")
	is.NoErr(err)
	is.Equal(again.ID, p.ID)

	resp, err := f.svc.Auth.Login(f.ctx, models.UserLoginRequest{Email: "root@example.com", Password: "super secret"})
	is.NoErr(err)
	is.Equal(resp.User.Role, models.RoleAdmin)
}
