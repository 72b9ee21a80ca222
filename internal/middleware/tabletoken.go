package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/playmatatu/billiards/internal/config"
)

const tableClaim = "table_id"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongTable   = errors.New("token is for another table")
)

func tokenTTL(cfg *config.Config) time.Duration {
	if cfg.TableTokenHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.TableTokenHours) * time.Hour
}

// IssueTableToken signs a control token for one table.
func IssueTableToken(cfg *config.Config, tableID string) (string, time.Time, error) {
	exp := time.Now().Add(tokenTTL(cfg))
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	custom := jwt.MapClaims{tableClaim: tableID, "exp": claims.ExpiresAt.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, custom)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyTableToken checks that token is a live control token for tableID.
func VerifyTableToken(cfg *config.Config, token, tableID string) error {
	if token == "" {
		return ErrMissingToken
	}
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}
	id, ok := claims[tableClaim].(string)
	if !ok {
		return ErrInvalidToken
	}
	if id != tableID {
		return ErrWrongTable
	}
	return nil
}

// TableAuthMiddleware requires a bearer control token for the table named by
// :id.
func TableAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		err := VerifyTableToken(cfg, strings.TrimPrefix(auth, "Bearer "), c.Param("id"))
		switch {
		case errors.Is(err, ErrWrongTable):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
