package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(authHeader string) (*httptest.ResponseRecorder, *string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var seenBuyer *string
	r.GET("/protected", Middleware(testSecret), func(c *gin.Context) {
		if id, ok := BuyerID(c); ok {
			seenBuyer = &id
		}
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seenBuyer
}

func TestMiddleware_ValidToken(t *testing.T) {
	w, buyer := doRequest("Bearer " + signToken(t, testSecret, "buyer-42"))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if buyer == nil || *buyer != "buyer-42" {
		t.Fatalf("expected buyer-42 on context, got %v", buyer)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	w, _ := doRequest("")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_WrongSecret(t *testing.T) {
	w, buyer := doRequest("Bearer " + signToken(t, "other-secret", "buyer-42"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if buyer != nil {
		t.Fatal("handler must not run for a forged token")
	}
}

func TestMiddleware_MissingSubject(t *testing.T) {
	w, _ := doRequest("Bearer " + signToken(t, testSecret, ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token without subject, got %d", w.Code)
	}
}
