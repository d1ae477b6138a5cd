package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Manager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "pinauth-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := hs256Manager(t)

	token, err := m.CreateAccess("user-1", "sess-1", []string{"clinic.read"})
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "user-1" || claims.SID != "sess-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Perms) != 1 || claims.Perms[0] != "clinic.read" {
		t.Fatalf("perms = %v", claims.Perms)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := hs256Manager(t)

	token, err := m.CreateAccess("user-1", "sess-1", nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := m.ParseAccess(token + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}

	other, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("another-key-another-key-another!"),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.ParseAccess(token); err == nil {
		t.Fatal("token verified under the wrong key")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.CreateAccess("user-1", "sess-1", nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "user-1" {
		t.Fatalf("uid = %q", claims.UID)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl": {
			SigningMethod: MethodHS256,
			PrivateKey:    []byte("k"),
		},
		"hs256 without key": {
			AccessTTL:     time.Minute,
			SigningMethod: MethodHS256,
		},
		"unknown method": {
			AccessTTL:     time.Minute,
			SigningMethod: "rs512",
			PrivateKey:    []byte("k"),
		},
	}

	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Errorf("%s: NewManager accepted invalid config", name)
		}
	}
}
