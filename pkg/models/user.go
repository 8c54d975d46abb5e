package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole separates the three dashboards.
type UserRole string

const (
	RoleParticipant UserRole = "participant"
	RolePartner     UserRole = "partner"
	RoleAdmin       UserRole = "admin"
)

// ProfileStatus mirrors PartnerStatus for partner accounts; participants are "active".
type ProfileStatus string

const ProfileActive ProfileStatus = "active"

// UserProfile is the staff/participant record.
type UserProfile struct {
	ID          string        `json:"id" bson:"_id" validate:"required"`
	Email       string        `json:"email" bson:"email" validate:"required,email"`
	DisplayName string        `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Role        UserRole      `json:"role" bson:"role" validate:"required,oneof=participant partner admin"`
	Status      ProfileStatus `json:"status" bson:"status" validate:"required"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt" validate:"required"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updatedAt" validate:"required"`
}

// Credential holds the password hash for email sign-in, keyed by email.
// It is never written to API responses.
type Credential struct {
	ID           string    `json:"id" bson:"_id" validate:"required,email"`
	UserID       string    `json:"userId" bson:"userId" validate:"required"`
	PasswordHash string    `json:"passwordHash" bson:"passwordHash" validate:"required"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt" validate:"required"`
}

// PublicProfile holds the aggregate counters shown on a user's public page.
// Counters are only ever incremented or decremented, never recomputed.
type PublicProfile struct {
	ID                    string    `json:"id" bson:"_id" validate:"required"`
	TotalSubmissions      int64     `json:"total_submissions" bson:"total_submissions"`
	TotalActiveChallenges int64     `json:"total_active_challenges" bson:"total_active_challenges"`
	ProjectsCount         int64     `json:"projectsCount" bson:"projectsCount"`
	Submissions           []string  `json:"submissions" bson:"submissions"`
	UpdatedAt             time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ProfileDelta is applied to a PublicProfile with increment semantics.
type ProfileDelta struct {
	TotalSubmissions      int64
	TotalActiveChallenges int64
	ProjectsCount         int64
	// AddSubmission is unioned into Submissions when non-empty.
	AddSubmission string
}

// Apply adds d to p in place.
func (d ProfileDelta) Apply(p *PublicProfile) {
	p.TotalSubmissions += d.TotalSubmissions
	p.TotalActiveChallenges += d.TotalActiveChallenges
	p.ProjectsCount += d.ProjectsCount
	if d.AddSubmission == "" {
		return
	}
	for _, s := range p.Submissions {
		if s == d.AddSubmission {
			return
		}
	}
	p.Submissions = append(p.Submissions, d.AddSubmission)
}

// UserRegisterRequest represents the request payload for user registration
type UserRegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName"`
}

// UserLoginRequest represents the request payload for user login
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserLoginResponse represents the response payload for user login
type UserLoginResponse struct {
	User         UserProfile `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Email  string
	Role   UserRole
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	Type   string   `json:"type"` // "access" or "refresh"
	Exp    int64    `json:"exp"`
	Iat    int64    `json:"iat"`
}

// Actor converts the claims into the caller identity used by services.
func (c *TokenClaims) Actor() Actor {
	return Actor{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
