package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/playmatatu/billiards/internal/config"
)

func TestTableTokenRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", TableTokenHours: 2}
	token, exp, err := IssueTableToken(cfg, "table-1")
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(exp); d < time.Hour || d > 2*time.Hour {
		t.Errorf("token expires in %s, want about 2h", d)
	}
	if err := VerifyTableToken(cfg, token, "table-1"); err != nil {
		t.Errorf("own table: %v", err)
	}
	if err := VerifyTableToken(cfg, token, "table-2"); !errors.Is(err, ErrWrongTable) {
		t.Errorf("other table err = %v, want ErrWrongTable", err)
	}
	if err := VerifyTableToken(cfg, "", "table-1"); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token err = %v, want ErrMissingToken", err)
	}
}

func TestTableTokenRejected(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", sign(jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{tableClaim: "t", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{tableClaim: "t"})},
		{"other secret", sign(jwt.SigningMethodHS256, []byte("nope"), jwt.MapClaims{tableClaim: "t"})},
		{"no table claim", sign(jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"player_id": 7})},
		{"garbage", "a.b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyTableToken(cfg, tt.token, "t"); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}
