package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	signed, err := tokens.Issue("01HUSER", "BUYER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "01HUSER" || claims.Role != "BUYER" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokens_RejectsBadInput(t *testing.T) {
	if _, err := NewTokens("", time.Hour); err == nil {
		t.Fatal("empty secret should be rejected")
	}

	tokens, _ := NewTokens("secret-a", time.Hour)
	other, _ := NewTokens("secret-b", time.Hour)
	signed, _ := other.Issue("u", "BUYER")
	if _, err := tokens.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("cross-secret token: err = %v, want ErrInvalidToken", err)
	}
	if _, err := tokens.Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: err = %v, want ErrInvalidToken", err)
	}
}

func TestTokens_Expiry(t *testing.T) {
	tokens, _ := NewTokens("test-secret", time.Hour)
	// Back-date the TTL so the issued token is already expired.
	tokens.ttl = -time.Hour
	signed, err := tokens.Issue("u", "SELLER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v, want ErrInvalidToken", err)
	}
}

func middlewareRouter(t *testing.T) (*gin.Engine, *Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	r := gin.New()
	r.GET("/whoami", Middleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": Role(c)})
	})
	return r, tokens
}

func TestMiddleware_AllowsValidToken(t *testing.T) {
	r, tokens := middlewareRouter(t)
	signed, _ := tokens.Issue("01HUSER", "SELLER")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); !strings.Contains(got, "01HUSER") || !strings.Contains(got, "SELLER") {
		t.Errorf("body = %s", got)
	}
}

func TestMiddleware_RejectsMissingOrBadToken(t *testing.T) {
	r, _ := middlewareRouter(t)

	for _, header := range []string{"", "Basic abc", "Bearer bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}
