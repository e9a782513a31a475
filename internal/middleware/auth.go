package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"farmapos/internal/apierror"
	"farmapos/internal/model"
	"farmapos/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ClaimsKey = "claims"

	msgAuthRequired = "authentication required"
	msgAccessDenied = "access denied"
)

// JWTClaims are the custom claims embedded in every token.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// UserUUID parses the subject id. Returns uuid.Nil on malformed claims.
func (c *JWTClaims) UserUUID() uuid.UUID {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// JWTAuth validates the Bearer access token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		// Refresh tokens are only accepted by /auth/refresh.
		if err != nil || !token.Valid || claims.Type != "access" || claims.UserUUID() == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// AccountLoader loads the current state of an account.
type AccountLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// ActiveAccount re-reads the token's account on every request so that a
// deactivation or role change takes effect before the token expires. The
// stored role and name replace the ones carried in the token.
// Must run after JWTAuth.
func ActiveAccount(users AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}
		user, err := users.FindByID(c.Request.Context(), claims.UserUUID())
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New(msgInternal))
			return
		}
		if err != nil || !user.IsActive() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}
		claims.Role = string(user.Role)
		claims.Name = user.Name
		c.Next()
	}
}

// Authorize rejects requests whose role may not perform op according to gate.
// Must run after JWTAuth.
func Authorize(gate *policy.Gate, op policy.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}
		if !gate.Authorize(model.Role(claims.Role), op) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(msgAccessDenied))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
