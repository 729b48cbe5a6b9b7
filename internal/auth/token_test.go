package auth

import (
	"errors"
	"testing"
	"time"
)

func testMaker() *TokenMaker {
	return NewTokenMaker("test-secret", "polymathscurse", 15*time.Minute, 30*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testMaker()

	tok, err := m.NewAccessToken(42)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	claims, err := m.Verify(tok, TokenTypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("user id = %d, want 42", claims.UserID)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("type = %q, want access", claims.Type)
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	m := testMaker()

	jti := NewJTI()
	tok, err := m.NewRefreshToken(42, jti)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	claims, err := m.Verify(tok, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != jti {
		t.Errorf("jti = %q, want %q", claims.JTI, jti)
	}
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := testMaker()

	access, err := m.NewAccessToken(42)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := m.Verify(access, TokenTypeRefresh); !errors.Is(err, ErrWrongTokenUse) {
		t.Fatalf("access as refresh: expected ErrWrongTokenUse, got %v", err)
	}

	refresh, err := m.NewRefreshToken(42, NewJTI())
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if _, err := m.Verify(refresh, TokenTypeAccess); !errors.Is(err, ErrWrongTokenUse) {
		t.Fatalf("refresh as access: expected ErrWrongTokenUse, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	m := testMaker()

	tok, err := m.NewAccessToken(42)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := m.Verify(tok+"x", TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered: expected ErrInvalidToken, got %v", err)
	}
	if _, err := m.Verify("not-a-token", TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	m := testMaker()
	other := NewTokenMaker("other-secret", "polymathscurse", 15*time.Minute, 30*24*time.Hour)

	tok, err := other.NewAccessToken(42)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := m.Verify(tok, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewTokenMaker("test-secret", "polymathscurse", -time.Minute, 30*24*time.Hour)

	tok, err := m.NewAccessToken(42)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := m.Verify(tok, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
}
