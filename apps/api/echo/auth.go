package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/session"
)

var (
	// appJWTConfig is the JWT auth middleware config; set up in NewServer.
	appJWTConfig   middleware.JWTConfig
	appName        string
	jwtExpiration  time.Duration
	jwtRefreshExp  time.Duration
	contextSnapKey = "sessionSnapshot"
)

func initAuth(conf *core.Config) {
	appName = conf.AppName
	jwtExpiration = conf.Server.JWTExpirationDelta
	jwtRefreshExp = conf.Server.JWTRefreshExpirationDelta
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

func GetAppUserClaims(au *session.AppUser, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   au.ID,
			Audience:  "FarsiHub",
			ExpiresAt: now.Add(jwtExpiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         au.Name,
		Email:        au.Email,
		IsStudent:    au.IsStudent(),
		IsAdmin:      au.IsAdmin(),
	}
}

// authenticate verifies credentials and waits for the resulting session to
// settle. A sign-in whose session does not come back authenticated (eg. the
// profile document is gone) is treated as failed.
func authenticate(ctx echo.Context, email, pwd string, idnSvc *identity.Service, mgr *session.Manager) (*Claims, error) {
	idn, err := idnSvc.Authenticate(ctx.Request().Context(), email, pwd)
	if err != nil {
		if errors.Cause(err) == identity.ErrInvalidCredentials {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating")
	}

	snap, err := mgr.Resolve(ctx.Request().Context(), idn.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving session")
	}
	if !snap.Authenticated() {
		return nil, errAuthenticationFailed
	}
	return GetAppUserClaims(snap.User), nil
}

// GenerateToken generates a signed JWT token string representing the claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextSnapshot(ctx echo.Context) (session.Snapshot, error) {
	if snap, ok := ctx.Get(contextSnapKey).(session.Snapshot); ok {
		return snap, nil
	}
	return session.Snapshot{}, errUnauthorized
}

func refreshToken(ctx echo.Context, mgr *session.Manager) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jwtRefreshExp)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	snap, err := mgr.Resolve(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return "", errors.Wrap(err, "resolving session")
	}
	if !snap.Authenticated() {
		return "", errUnauthorized
	}

	newClaims := GetAppUserClaims(snap.User, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
