package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

// Principal is the caller identity passed explicitly to every service call.
type Principal struct {
	UserID    int64
	Role      models.RoleType
	StudentID int64 // zero for admins
}

// System is the principal used by scheduled jobs and seeding.
var System = Principal{Role: models.RoleAdmin}

// IsAdmin reports whether p holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// RequireAdmin fails with a permission error unless p is an admin.
func (p Principal) RequireAdmin() error {
	if !p.IsAdmin() {
		return apperrors.NewForbiddenError("administrator role required")
	}
	return nil
}

// CanActFor reports whether p may read or write records owned by studentID.
func (p Principal) CanActFor(studentID int64) bool {
	return p.IsAdmin() || (p.Role == models.RoleStudent && p.StudentID == studentID)
}

// RequireStudent fails with a permission error unless p may act for studentID.
func (p Principal) RequireStudent(studentID int64) error {
	if !p.CanActFor(studentID) {
		return apperrors.NewForbiddenError("you may only access your own records")
	}
	return nil
}

const principalKey = "principal"

// SetPrincipal stores p on the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal stored by the auth middleware.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
