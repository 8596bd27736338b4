package auth

import (
	"context"
	"testing"
	"time"
)

func TestHS256SignVerify(t *testing.T) {
	ts, err := NewHS256Service("secret", "ixurl", time.Hour)
	if err != nil {
		t.Fatalf("NewHS256Service: %v", err)
	}
	token, err := ts.Sign("42", "admin")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "42" || claims.Role != "admin" {
		t.Fatalf("claims: got %+v", claims)
	}
}

func TestHS256Rejects(t *testing.T) {
	ts, _ := NewHS256Service("secret", "ixurl", time.Hour)
	other, _ := NewHS256Service("other-secret", "ixurl", time.Hour)
	foreign, _ := NewHS256Service("secret", "someone-else", time.Hour)
	expired := &hs256Service{secret: []byte("secret"), issuer: "ixurl", ttl: -time.Minute}

	for name, signer := range map[string]TokenService{
		"wrong secret": other,
		"wrong issuer": foreign,
		"expired":      expired,
	} {
		token, err := signer.Sign("1", "admin")
		if err != nil {
			t.Fatalf("%s: Sign: %v", name, err)
		}
		if _, err := ts.Verify(token); err == nil {
			t.Fatalf("%s: Verify accepted the token", name)
		}
	}

	if _, err := ts.Sign("", "admin"); err == nil {
		t.Fatal("Sign accepted an empty user id")
	}
}

func TestNewHS256ServiceValidates(t *testing.T) {
	if _, err := NewHS256Service("", "ixurl", time.Hour); err == nil {
		t.Fatal("empty secret accepted")
	}
	if _, err := NewHS256Service("s", "", time.Hour); err == nil {
		t.Fatal("empty issuer accepted")
	}
	if _, err := NewHS256Service("s", "ixurl", 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := GetIdentity(context.Background()); ok {
		t.Fatal("identity on empty context")
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: "1", Role: "viewer"})
	id, ok := GetIdentity(ctx)
	if !ok || id.UserID != "1" || id.Role != "viewer" {
		t.Fatalf("got %+v %v", id, ok)
	}
}
