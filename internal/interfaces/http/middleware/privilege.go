// Package middleware holds the HTTP middleware chain: privilege extraction,
// request logging, CORS, and request metrics.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/pkg/types/common"
)

// Context keys set by PrivilegeMiddleware.
const (
	ContextKeyPrivilege = "edit_privilege"
	ContextKeyUserID    = "user_id"
)

// UserIDHeader carries the authenticated caller's identifier, set by the
// authenticating proxy in front of this service.
const UserIDHeader = "X-User-Id"

// PrivilegeMiddleware reads the caller's edit privilege and identity from
// trusted proxy headers.  The service itself performs no authentication;
// unknown or absent privilege values degrade to none, which every
// privilege check rejects.
type PrivilegeMiddleware struct {
	header string
}

// NewPrivilegeMiddleware builds the middleware reading the given privilege
// header.
func NewPrivilegeMiddleware(privilegeHeader string) *PrivilegeMiddleware {
	return &PrivilegeMiddleware{header: privilegeHeader}
}

var knownPrivileges = map[common.Privilege]bool{
	common.PrivilegeBrowse: true,
	common.PrivilegeEdit:   true,
	common.PrivilegeCreate: true,
	common.PrivilegeAdmin:  true,
}

// Handler extracts the privilege and user ID into the request context.
func (m *PrivilegeMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := common.Privilege(c.GetHeader(m.header))
		if !knownPrivileges[p] {
			p = common.PrivilegeNone
		}
		c.Set(ContextKeyPrivilege, p)
		c.Set(ContextKeyUserID, c.GetHeader(UserIDHeader))
		c.Next()
	}
}

// ContextPrivilege returns the caller's privilege from the gin context.
func ContextPrivilege(c *gin.Context) common.Privilege {
	if v, ok := c.Get(ContextKeyPrivilege); ok {
		if p, ok := v.(common.Privilege); ok {
			return p
		}
	}
	return common.PrivilegeNone
}

// ContextUserID returns the caller's identifier, or "anonymous" when the
// proxy sent none.
func ContextUserID(c *gin.Context) common.UserID {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(string); ok && id != "" {
			return common.UserID(id)
		}
	}
	return common.UserID("anonymous")
}
