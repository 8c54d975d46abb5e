// Package services implements the challenge platform workflows on top of a
// database.DatabaseInterface. Every operation takes the authenticated actor,
// authorizes it before writing and runs multi-record changes in one transaction.
package services

import (
	"errors"
	"time"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/metrics"
	"challenge-hub-backend/pkg/models"

	"github.com/charmbracelet/log"
)

// Options are the dependencies shared by all services.
type Options struct {
	DB      database.DatabaseInterface
	Authz   *authz.Enforcer
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

type base struct {
	db      database.DatabaseInterface
	authz   *authz.Enforcer
	metrics *metrics.Metrics
	logger  *log.Logger
	clock   func() time.Time
}

func newBase(opts Options, prefix string) base {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Now
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return base{
		db:      opts.DB,
		authz:   opts.Authz,
		metrics: opts.Metrics,
		logger:  logger.WithPrefix(prefix),
		clock:   clock,
	}
}

func (b base) now() time.Time {
	return b.clock()
}

// authorize maps an authz denial to a PermissionError.
func (b base) authorize(actor models.Actor, action string, res authz.Resource) error {
	if err := b.authz.Authorize(actor, action, res); err != nil {
		if errors.Is(err, authz.ErrDenied) {
			return &PermissionError{UserID: actor.UserID, Action: action, Kind: res.Kind, ID: res.ID, Err: err}
		}
		return err
	}
	return nil
}

func validateInput(v interface{}) error {
	if err := models.Validate(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// Services bundles every service built from one Options.
type Services struct {
	Auth       *AuthService
	Partners   *PartnerService
	Challenges *ChallengeService
	Projects   *ProjectService
	Teams      *TeamService
	Dashboard  *DashboardService
	Relay      *OutboxRelay
}

// New builds all services. partnerCacheSize bounds the partner LRU cache.
func New(opts Options, jwtSecret string, partnerCacheSize int) (*Services, error) {
	partners, err := NewPartnerService(opts, partnerCacheSize)
	if err != nil {
		return nil, err
	}
	relay := NewOutboxRelay(opts)
	return &Services{
		Auth:       NewAuthService(opts, jwtSecret),
		Partners:   partners,
		Challenges: NewChallengeService(opts),
		Projects:   NewProjectService(opts, relay),
		Teams:      NewTeamService(opts),
		Dashboard:  NewDashboardService(opts),
		Relay:      relay,
	}, nil
}
