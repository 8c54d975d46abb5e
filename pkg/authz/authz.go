// Package authz decides whether an actor may perform an action on a resource.
//
// Roles are resolved in Go from the actor and its relation to the resource
// (owner, team admin, invitee, ...); the casbin policy maps roles to allowed
// (object, action) pairs.
package authz

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"challenge-hub-backend/pkg/models"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/charmbracelet/log"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

// ErrDenied is wrapped by every authorization failure.
var ErrDenied = errors.New("permission denied")

// Objects.
const (
	ObjPartner    = "partner"
	ObjChallenge  = "challenge"
	ObjProject    = "project"
	ObjTeam       = "team"
	ObjInvitation = "invitation"
	ObjDashboard  = "dashboard"
)

// Actions.
const (
	ActionApply      = "apply"
	ActionTransition = "transition"
	ActionList       = "list"
	ActionRead       = "read"
	ActionCreate     = "create"
	ActionJoin       = "join"
	ActionStart      = "start"
	ActionSubmit     = "submit"
	ActionInvite     = "invite"
	ActionAccept     = "accept"
	ActionDecline    = "decline"
)

// Relation roles, in addition to the actor's own models.UserRole.
const (
	RoleUser            = "user"
	RoleOwner           = "owner"
	RoleTeamAdmin       = "team_admin"
	RoleTeamMember      = "team_member"
	RoleInvitee         = "invitee"
	RolePublic          = "public"
	RoleApprovedPartner = "approved_partner"
)

// Resource describes the target of an action and the actor relations it carries.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
	Admins  []string
	Members []string
	// Email is the addressee of an invitation.
	Email  string
	Public bool
	// Extra roles the caller already established, e.g. RoleApprovedPartner.
	Extra []string
}

// Enforcer wraps the casbin enforcer loaded from the embedded model and policy.
type Enforcer struct {
	enforcer *casbin.Enforcer
	logger   *log.Logger
}

// NewEnforcer loads the embedded model and policy in memory. A nil logger
// discards decision logs.
func NewEnforcer(logger *log.Logger) (*Enforcer, error) {
	modelText, err := embedFS.ReadFile("model.conf")
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(string(modelText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	policyText, err := embedFS.ReadFile("policy.csv")
	if err != nil {
		return nil, err
	}
	policies, groupings, err := parsePolicy(string(policyText))
	if err != nil {
		return nil, err
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("failed to load authorization policy: %w", err)
	}
	if _, err := e.AddGroupingPolicies(groupings); err != nil {
		return nil, fmt.Errorf("failed to load authorization roles: %w", err)
	}
	return &Enforcer{enforcer: e, logger: logger}, nil
}

// parsePolicy splits casbin CSV policy text into p and g rules.
func parsePolicy(text string) (policies, groupings [][]string, err error) {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}
		switch fields[0] {
		case "p":
			policies = append(policies, fields[1:])
		case "g":
			groupings = append(groupings, fields[1:])
		default:
			return nil, nil, fmt.Errorf("policy line %d: unknown type %q", i+1, fields[0])
		}
	}
	return policies, groupings, nil
}

// Roles returns every role actor holds with respect to res.
func Roles(actor models.Actor, res Resource) []string {
	if actor.UserID == "" {
		return nil
	}
	roles := []string{RoleUser}
	if actor.Role != "" {
		roles = append(roles, string(actor.Role))
	}
	if res.OwnerID != "" && res.OwnerID == actor.UserID {
		roles = append(roles, RoleOwner)
	}
	if contains(res.Admins, actor.UserID) {
		roles = append(roles, RoleTeamAdmin)
	}
	if contains(res.Members, actor.UserID) {
		roles = append(roles, RoleTeamMember)
	}
	if res.Email != "" && strings.EqualFold(res.Email, actor.Email) {
		roles = append(roles, RoleInvitee)
	}
	if res.Public {
		roles = append(roles, RolePublic)
	}
	return append(roles, res.Extra...)
}

// Authorize returns nil when any role of actor allows action on res and an
// error wrapping ErrDenied otherwise.
func (e *Enforcer) Authorize(actor models.Actor, action string, res Resource) error {
	for _, role := range Roles(actor, res) {
		ok, err := e.enforcer.Enforce(role, res.Kind, action)
		if err != nil {
			return fmt.Errorf("authorization check failed: %w", err)
		}
		if ok {
			if e.logger != nil {
				e.logger.Debug("allowed", "user", actor.UserID, "role", role, "object", res.Kind, "action", action, "id", res.ID)
			}
			return nil
		}
	}
	if e.logger != nil {
		e.logger.Debug("denied", "user", actor.UserID, "object", res.Kind, "action", action, "id", res.ID)
	}
	return fmt.Errorf("%w: %s cannot %s %s %s", ErrDenied, actor.UserID, action, res.Kind, res.ID)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
