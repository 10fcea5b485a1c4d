package security

import (
	stderrors "errors"
	"net/http"
	"strings"

	errors "facegram/tools/errs"
	sec "facegram/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// later handlers read the caller through these keys
const (
	PPCtxUserKey     = "userId"            // string, the token subject
	PPCtxAuthHashKey = "authorizationHash" // string, sha256 of the raw token
)

var ErrNoToken = stderrors.New("no token in request")

type Options struct {
	JWT sec.Options

	CookieName                string // 默认 "token"
	QueryParam                string // websocket upgrades only
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:                       sec.DefaultOptions(secret),
		CookieName:                "token",
		QueryParam:                "token",
		EnableAuthorizationBearer: true,
	}
}

// tokenFrom looks in the cookie first, then the Authorization header, then
// (when allowed) the query string.
func tokenFrom(r *http.Request, opts *Options, allowQuery bool) string {
	if opts.CookieName != "" {
		if ck, err := r.Cookie(opts.CookieName); err == nil && strings.TrimSpace(ck.Value) != "" {
			return strings.TrimSpace(ck.Value)
		}
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if allowQuery && opts.QueryParam != "" {
		return strings.TrimSpace(r.URL.Query().Get(opts.QueryParam))
	}
	return ""
}

// Authenticate verifies the token of a websocket upgrade request and returns
// its subject.
func Authenticate(opts *Options) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		token := tokenFrom(r, opts, true)
		if token == "" {
			return "", ErrNoToken
		}
		claims, err := sec.Verify(opts.JWT, token)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}

// Middleware rejects requests without a valid token with 401 and puts the
// caller's user id into the gin context.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c.Request, opts, false)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Body(errors.ErrTokenExpired.WrapMsg(ErrNoToken.Error())))
			return
		}
		claims, err := sec.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Body(errors.ErrTokenExpired.WrapMsg(err.Error())))
			return
		}

		c.Set(PPCtxUserKey, claims.Subject)
		c.Set(PPCtxAuthHashKey, sec.HashToken(token))
		c.Next()
	}
}

// UserID returns the authenticated caller, empty when the route is public.
func UserID(c *gin.Context) string {
	return c.GetString(PPCtxUserKey)
}
