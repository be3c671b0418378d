package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

const (
	msgAdminCreated    = "Admin account created. Please log in."
	msgLoggedOut       = "Logged out."
	msgPasswordUpdated = "Password updated successfully!"
)

type userApi struct {
	conf      *core.Config
	svc       *user.Service
	schoolSvc *school.Service
}

func registerUserAPI(g *echo.Group, deps ServerDeps) {
	api := userApi{
		conf:      deps.Conf,
		svc:       deps.UserSvc,
		schoolSvc: deps.SchoolSvc,
	}

	// un-authed endpoints
	sg := g.Group("/system")
	sg.GET("/status", api.systemStatus)
	sg.POST("/register", api.registerFirstAdmin)

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)

	// authed endpoints
	ag.GET("/me", api.me, requireSession)
	ag.POST("/token-refresh", api.refreshToken, requireSession)

	stg := g.Group("/settings", requireSession)
	stg.GET("", api.settings)
	stg.POST("/password", api.changePassword)
}

// Handlers

func (api *userApi) systemStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.SystemStatus(ctx.Request().Context()))
}

func (api *userApi) registerFirstAdmin(ctx echo.Context) error {
	var data user.NewAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmin")
	}

	if _, err := api.svc.RegisterFirstAdmin(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "registering first admin")
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{Success: msgAdminCreated})
}

func (api *userApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	id, err := api.svc.Authenticate(ctx.Request().Context(), data)
	recordLoginAttempt(err == nil)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	token, err := issueSession(ctx, api.conf, id)
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: id})
}

func (api *userApi) logout(ctx echo.Context) error {
	clearSessionCookie(ctx, api.conf)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msgLoggedOut})
}

func (api *userApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextIdentity(ctx))
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshSession(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) settings(ctx echo.Context) error {
	menu, err := api.schoolSvc.Settings(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "building settings menu")
	}
	return ctx.JSON(http.StatusOK, menu)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}

	if err := api.svc.ChangePassword(ctx.Request().Context(), getContextIdentity(ctx), data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msgPasswordUpdated})
}

type (
	LoginResponse struct {
		Token string        `json:"token"`
		User  user.Identity `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
