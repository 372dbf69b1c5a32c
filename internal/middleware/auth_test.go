package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func claimsExpiringAt(exp time.Time) Claims {
	return Claims{
		UserID: "u-1",
		Role:   RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	token, err := m.IssueToken("u-42", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("claims not in context")
		}
		if claims.UserID != "u-42" || claims.Role != RoleAdmin {
			t.Fatalf("unexpected claims: %+v", claims)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithCookie(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claimsExpiringAt(time.Now().Add(time.Hour)))

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: token})

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token"},
		{name: "wrong scheme", header: "Basic " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claimsExpiringAt(now.Add(time.Hour)))},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), claimsExpiringAt(now.Add(time.Hour)))},
		{name: "expired beyond leeway", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claimsExpiringAt(now.Add(-2*time.Minute)))},
		{name: "unsigned", header: "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claimsExpiringAt(now.Add(time.Hour)))},
		{name: "garbage", header: "Bearer not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(testSecret)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_ClockLeeway(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claimsExpiringAt(time.Now().Add(-30*time.Second)))

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("token expired within leeway must be accepted")
	}
}

func TestAuthMiddleware_PreflightPasses(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/protected", nil)

	m.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "admin allowed", role: RoleAdmin, want: http.StatusOK},
		{name: "staff forbidden", role: RoleStaff, want: http.StatusForbidden},
		{name: "no role forbidden", role: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.IssueToken("u-1", tt.role, time.Hour)
			if err != nil {
				t.Fatalf("IssueToken error: %v", err)
			}

			h := m.Middleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodDelete, "/protected", nil)
			r.Header.Set("Authorization", "Bearer "+token)

			h.ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
