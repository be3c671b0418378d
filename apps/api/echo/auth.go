package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "
)

var (
	errUnexpectedSigningMethod = errors.New("unexpected signing method")
	errMissingExpiry           = errors.New("token has no expiry")
	errMissingSubject          = errors.New("token has no subject")
	errInvalidRole             = errors.New("token has an invalid role")
)

// Claims represents the session carried by a signed JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role"`
}

// Valid checks the standard claims, then that the token expires and names a user holding a known role.
func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.ExpiresAt == 0 {
		return errMissingExpiry
	}
	if c.Subject == "" {
		return errMissingSubject
	}
	if !c.Role.IsValid() {
		return errInvalidRole
	}
	return nil
}

func (c Claims) Identity() user.Identity {
	return user.Identity{ID: c.Subject, Name: c.Name, Email: c.Email, Role: c.Role}
}

func GetIdentityClaims(conf *core.Config, id user.Identity, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         id.Name,
		Email:        id.Email,
		Role:         id.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its Claims.
func ParseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errUnexpectedSigningMethod
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// tokenFromRequest reads the token from the Authorization header, then from the session cookie.
func tokenFromRequest(req *http.Request, cookieName string) string {
	if auth := req.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	if cookie, err := req.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// sessionMiddleware stores the verified Claims in the context. An absent or invalid token is no session.
func sessionMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if tokenStr := tokenFromRequest(ctx.Request(), conf.Server.SessionCookie); tokenStr != "" {
				if claims, err := ParseToken(conf, tokenStr); err == nil {
					ctx.Set(contextClaimsKey, claims)
				}
			}
			return next(ctx)
		}
	}
}

// requireSession rejects requests without a valid session.
func requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, ok := getContextClaims(ctx); !ok {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (*Claims, bool) {
	claims, ok := ctx.Get(contextClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

func getContextIdentity(ctx echo.Context) user.Identity {
	if claims, ok := getContextClaims(ctx); ok {
		return claims.Identity()
	}
	return user.Identity{}
}

func setSessionCookie(ctx echo.Context, conf *core.Config, token string, claims *Claims) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(claims.ExpiresAt, 0),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   conf.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// issueSession signs a token for id, sets the session cookie and returns the token.
func issueSession(ctx echo.Context, conf *core.Config, id user.Identity, origIat ...int64) (string, error) {
	claims := GetIdentityClaims(conf, id, origIat...)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		return "", err
	}
	setSessionCookie(ctx, conf, token, claims)
	return token, nil
}

// refreshSession re-issues the context session, keeping its original issue time.
func refreshSession(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, ok := getContextClaims(ctx)
	if !ok {
		return "", errUnauthorized
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	// the account must still exist
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errUnauthorized
		}
		return "", errors.Wrap(err, "finding user")
	}
	return issueSession(ctx, conf, usr.Identity(), claims.OrigIssuedAt)
}
