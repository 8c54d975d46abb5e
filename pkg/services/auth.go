package services

import (
	"context"
	"errors"
	"strings"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned by Register for an email that already has a credential.
var ErrEmailTaken = errors.New("email already registered")

// AuthService handles email sign-up, sign-in and token refresh.
type AuthService struct {
	base
	jwt  *utils.JWTService
	cost int
}

func NewAuthService(opts Options, jwtSecret string) *AuthService {
	return &AuthService{
		base: newBase(opts, "auth"),
		jwt:  utils.NewJWTService(jwtSecret),
		cost: bcrypt.DefaultCost,
	}
}

// JWT returns the token service used to sign access tokens.
func (s *AuthService) JWT() *utils.JWTService {
	return s.jwt
}

// Register creates a participant profile and its credential in one
// transaction and signs the user in.
func (s *AuthService) Register(ctx context.Context, req models.UserRegisterRequest) (*models.UserLoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validateInput(&req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile := &models.UserProfile{
		ID:          uuid.NewString(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        models.RoleParticipant,
		Status:      models.ProfileActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		cred := &models.Credential{
			ID:           req.Email,
			UserID:       profile.ID,
			PasswordHash: string(hash),
			CreatedAt:    now,
		}
		if err := tx.CreateCredential(ctx, cred); err != nil {
			if errors.Is(err, database.ErrDuplicateKey) {
				return ErrEmailTaken
			}
			return err
		}
		return tx.CreateUserProfile(ctx, profile)
	})
	if errors.Is(err, database.ErrDuplicateKey) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user", profile.ID)
	return s.signIn(profile)
}

// Login checks the password of req.Email and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req models.UserLoginRequest) (*models.UserLoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateInput(&req); err != nil {
		return nil, err
	}

	cred, err := s.db.GetCredential(ctx, req.Email)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("password mismatch", "user", cred.UserID)
		return nil, ErrInvalidCredentials
	}

	profile, err := s.db.GetUserProfile(ctx, cred.UserID)
	if err != nil {
		return nil, notFound(err, KindProfile, cred.UserID)
	}
	return s.signIn(profile)
}

// Refresh issues a new token pair from a refresh token. The role is re-read
// from the profile so an approved partner picks it up without signing in.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.UserLoginResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("refresh rejected", "err", err)
		return nil, ErrInvalidCredentials
	}
	profile, err := s.db.GetUserProfile(ctx, claims.UserID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.signIn(profile)
}

// EnsureAdmin registers email if needed and promotes its profile to admin.
// An existing account keeps its password.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var userID string
	cred, err := s.db.GetCredential(ctx, email)
	switch {
	case database.IsNotFound(err):
		reg, err := s.Register(ctx, models.UserRegisterRequest{Email: email, Password: password})
		if err != nil {
			return nil, err
		}
		userID = reg.User.ID
	case err != nil:
		return nil, err
	default:
		userID = cred.UserID
	}

	var profile *models.UserProfile
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		p, err := tx.GetUserProfile(ctx, userID)
		if err != nil {
			return notFound(err, KindProfile, userID)
		}
		p.Role = models.RoleAdmin
		p.Status = models.ProfileActive
		p.UpdatedAt = s.now()
		profile = p
		return tx.SaveUserProfile(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin ensured", "user", userID)
	return profile, nil
}

func (s *AuthService) signIn(profile *models.UserProfile) (*models.UserLoginResponse, error) {
	access, refresh, expiresIn, err := s.jwt.GenerateTokenPair(profile.ID, profile.Email, profile.Role)
	if err != nil {
		return nil, err
	}
	return &models.UserLoginResponse{
		User:         *profile,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	}, nil
}
