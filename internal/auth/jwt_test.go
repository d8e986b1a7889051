package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

func newTestJWT(t *testing.T) *JWT {
	t.Helper()
	j, err := New(Config{Secret: "s3cret", Issuer: "zsmseven-auth-api", Audience: "zsmseven-app"})
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestSignVerifyRoundTrip(t *testing.T) {
	j := newTestJWT(t)
	tok, exp, err := j.Sign(Claims{UserID: "u1", Email: "a@b.c", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v not in the future", exp)
	}
	claims, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	p := claims.Principal()
	if p.UserID != "u1" || p.Email != "a@b.c" || !p.IsAdmin() {
		t.Fatalf("principal=%+v", p)
	}
}

func TestVerifyRejects(t *testing.T) {
	j := newTestJWT(t)
	other, _ := New(Config{Secret: "different", Issuer: "zsmseven-auth-api", Audience: "zsmseven-app"})
	wrongAud, _ := New(Config{Secret: "s3cret", Issuer: "zsmseven-auth-api", Audience: "elsewhere"})
	wrongIss, _ := New(Config{Secret: "s3cret", Issuer: "someone-else", Audience: "zsmseven-app"})

	sign := func(j *JWT, c Claims) string {
		tok, _, err := j.Sign(c)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}
	expired := Claims{UserID: "u1"}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(other, Claims{UserID: "u1"})},
		{"wrong audience", sign(wrongAud, Claims{UserID: "u1"})},
		{"wrong issuer", sign(wrongIss, Claims{UserID: "u1"})},
		{"expired", sign(j, expired)},
		{"no user", sign(j, Claims{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := j.Verify(tt.token); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("err=%v want unauthorized", err)
			}
		})
	}
}

func TestDefaultRole(t *testing.T) {
	if got := (Claims{UserID: "u"}).Principal().Role; got != domain.RoleUser {
		t.Fatalf("role=%s want user", got)
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Fatalf("BearerToken(%q)=%q want=%q", tt.header, got, tt.want)
		}
	}
}
