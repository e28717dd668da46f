package credentials

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := gojwt.RegisteredClaims{Subject: "dispatcher-7", ExpiresAt: gojwt.NewNumericDate(exp)}
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestMemoryStore_OpaqueToken(t *testing.T) {
	s := NewMemoryStore("opaque-123")
	tok, ok := s.Token()
	if !ok || tok != "opaque-123" {
		t.Fatalf("expected opaque token, got %q %v", tok, ok)
	}
	if !s.ExpiresAt().IsZero() {
		t.Error("opaque tokens have no expiry")
	}
}

func TestMemoryStore_Empty(t *testing.T) {
	if _, ok := NewMemoryStore("").Token(); ok {
		t.Error("empty store should report no token")
	}
}

func TestMemoryStore_JWTExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		exp    time.Time
		wantOK bool
	}{
		{"valid", now.Add(time.Hour), true},
		{"expired", now.Add(-time.Minute), false},
		{"expires now", now, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore(signed(t, tc.exp))
			s.now = func() time.Time { return now }
			if _, ok := s.Token(); ok != tc.wantOK {
				t.Errorf("Token() ok = %v, want %v", ok, tc.wantOK)
			}
			if !s.ExpiresAt().Equal(tc.exp.Truncate(time.Second)) {
				t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt(), tc.exp)
			}
		})
	}
}

func TestMemoryStore_ClearNotifiesOnce(t *testing.T) {
	s := NewMemoryStore("tok")
	calls := 0
	s.OnClear(func() { calls++ })

	s.Clear()
	s.Clear()
	if calls != 1 {
		t.Errorf("expected one notification, got %d", calls)
	}
	if _, ok := s.Token(); ok {
		t.Error("token should be gone after Clear")
	}

	s.Set("tok-2")
	if tok, ok := s.Token(); !ok || tok != "tok-2" {
		t.Errorf("expected new token after Set, got %q %v", tok, ok)
	}
}

func TestNone(t *testing.T) {
	var src Source = None{}
	if _, ok := src.Token(); ok {
		t.Error("None should never have a token")
	}
	src.Clear()
}
