package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mindzed/attendance/core/user"
)

const (
	loginPath             = "/login"
	unauthorizedLoginPath = "/login?error=unauthorized"
)

// guardedArea is a path prefix reserved to some roles.
type guardedArea struct {
	prefix string
	roles  []user.Role
}

var guardedAreas = []guardedArea{
	{prefix: "/admin", roles: []user.Role{user.RoleAdmin}},
	{prefix: "/teacher", roles: []user.Role{user.RoleTeacher, user.RoleAdmin}},
	{prefix: "/student", roles: []user.Role{user.RoleStudent}},
}

// guardDecision is the outcome of guardRequest: pass when redirect is empty.
type guardDecision struct {
	redirect string
}

func (d guardDecision) allowed() bool { return d.redirect == "" }

// hasSegmentPrefix reports whether path is prefix itself or lies below it ("/admins" is not under "/admin").
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// guardRequest decides whether a page request may reach its handler.
// id is the zero Identity when the request carries no valid session.
func guardRequest(path string, id user.Identity) guardDecision {
	for _, area := range guardedAreas {
		if !hasSegmentPrefix(path, area.prefix) {
			continue
		}
		if id.IsZero() {
			return guardDecision{redirect: loginPath}
		}
		for _, role := range area.roles {
			if id.Role == role {
				return guardDecision{}
			}
		}
		return guardDecision{redirect: unauthorizedLoginPath}
	}
	return guardDecision{}
}

// guardMiddleware redirects page requests that guardRequest refuses.
func guardMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if d := guardRequest(ctx.Request().URL.Path, getContextIdentity(ctx)); !d.allowed() {
			guardRedirectsTotal.WithLabelValues(d.redirect).Inc()
			return ctx.Redirect(http.StatusTemporaryRedirect, d.redirect)
		}
		return next(ctx)
	}
}
