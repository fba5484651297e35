package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/security"
)

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty string")
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{password: "short", ok: false},
		{password: "exactly8", ok: true},
		{password: "correct horse battery", ok: true},
		{password: strings.Repeat("x", 200), ok: false},
	}
	for _, tc := range cases {
		err := security.ValidatePassword(tc.password)
		if tc.ok && err != nil {
			t.Fatalf("expected %q to pass, got %v", tc.password, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("expected %q to fail", tc.password)
		}
	}
}

func TestVerifyPasswordRejectsForeignFormats(t *testing.T) {
	cfg := config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	for name, encoded := range map[string]string{
		"argon2i":       strings.Replace(hash, "$argon2id$", "$argon2i$", 1),
		"old version":   strings.Replace(hash, "$v=19$", "$v=16$", 1),
		"zero memory":   strings.Replace(hash, "m=64,", "m=0,", 1),
		"threads > 255": strings.Replace(hash, ",p=1$", ",p=300$", 1),
		"bcrypt":        "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
	} {
		if _, err := security.VerifyPassword("very-secure-password", encoded); err == nil {
			t.Fatalf("%s: expected malformed hash error", name)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if security.NeedsRehash(hash, cfg) {
		t.Fatal("hash produced with current params should not need rehash")
	}

	stronger := cfg
	stronger.ArgonTime = 2
	if !security.NeedsRehash(hash, stronger) {
		t.Fatal("changed time cost should require rehash")
	}
	if !security.NeedsRehash("garbage", cfg) {
		t.Fatal("unparseable hash should require rehash")
	}
}
