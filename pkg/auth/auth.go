package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/errutil"
)

// Role of the verified caller.
const (
	RoleBusiness = "business"
	RoleCustomer = "customer"
)

// Identity is the verified caller extracted from the identity token. The
// token itself is minted by the auth collaborator; this package only
// verifies the HMAC signature.
type Identity struct {
	ActorID    string
	BusinessID string
	Role       string
}

type claims struct {
	BusinessID string `json:"business_id,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

const identityKey = "auth.identity"

// Middleware verifies the Bearer token and stores the Identity in the gin
// context. Requests without a valid token are rejected.
func Middleware(cfg *config.Config) gin.HandlerFunc {
	secret := []byte(cfg.Auth.SigningSecret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(401, errutil.BaseError{
				Code:    errutil.StatusUnauthorized,
				Message: "missing bearer token",
			}.JSON())
			return
		}

		var cl claims
		token, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, errutil.BaseError{
				Code:    errutil.StatusUnauthorized,
				Message: "invalid identity token",
			}.JSON())
			return
		}

		c.Set(identityKey, Identity{
			ActorID:    cl.Subject,
			BusinessID: cl.BusinessID,
			Role:       cl.Role,
		})

		c.Next()
	}
}

// FromContext returns the verified identity, or a zero Identity when the
// middleware did not run (tests exercising handlers directly).
func FromContext(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}
