package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/docquery-backend/internal/platform/ctxutil"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

var (
	ErrMissingToken = errors.New("missing or invalid token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type AuthConfig struct {
	Secret   string
	Issuer   string
	Required bool
}

// Authenticator verifies HS256 bearer tokens and attaches the subject as the caller identity.
type Authenticator struct {
	log    *logger.Logger
	cfg    AuthConfig
	parser *jwt.Parser
}

func NewAuthenticator(log *logger.Logger, cfg AuthConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Authenticator{
		log:    log.With("Middleware", "Authenticator"),
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}
}

// Enabled reports whether tokens can be verified at all.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.cfg.Secret != ""
}

// Subject verifies tokenString and returns its subject claim.
func (a *Authenticator) Subject(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := a.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.cfg.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Middleware attaches the caller identity when a valid bearer token is present. Requests without a
// token pass through unless the authenticator is configured as required.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		tokenString := extractBearer(c)
		if tokenString == "" {
			if a.cfg.Required {
				RespondError(c, http.StatusUnauthorized, "unauthenticated", ErrMissingToken)
				return
			}
			c.Next()
			return
		}
		sub, err := a.Subject(tokenString)
		if err != nil {
			a.log.Debug("token rejected", "error", err)
			RespondError(c, http.StatusUnauthorized, "unauthenticated", ErrInvalidToken)
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithCallerID(c.Request.Context(), sub))
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
