package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles issued by the external identity provider.
const (
	RoleClient     = "client"
	RoleTechnician = "technician"
)

// Identity is the authenticated caller as seen by handlers.
type Identity interface {
	UserID() uuid.UUID
	// DisplayName is the name claim, used as the actor label on timeline entries.
	DisplayName() string
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	name          string
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) DisplayName() string      { return i.name }
func (i *identity) Roles() []string          { return i.roles }
func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity reads the caller set by AuthRequired. It never fails; an
// unauthenticated identity is returned when the context carries no user.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roles []string
	if v, ok := c.Get(ContextRolesKey); ok {
		roles, _ = v.([]string)
	}

	return &identity{
		userID:        uid,
		name:          c.GetString(ContextNameKey),
		roles:         roles,
		authenticated: true,
	}
}

// MustGetIdentity aborts with 401 and returns nil when no caller is present.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "no autorizado"})
		return nil
	}
	return id
}

// NewIdentity builds an authenticated identity. Used by background callers and tests.
func NewIdentity(userID uuid.UUID, name string, roles ...string) Identity {
	return &identity{userID: userID, name: name, roles: roles, authenticated: true}
}
