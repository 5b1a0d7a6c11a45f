package security

import (
	"strings"
	"testing"

	"github.com/avalencia/storefront-backend/pkg/config"
)

var passwordTestCfg = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct-horse", passwordTestCfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := VerifyPassword("correct-horse", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("matching password must verify")
	}

	ok, err = VerifyPassword("wrong-horse", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := HashPassword("correct-horse", passwordTestCfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := HashPassword("correct-horse", passwordTestCfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := HashPassword("", passwordTestCfg); err == nil {
		t.Fatal("expected an error")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$bcrypt$something",
		"$argon2id$v=19$m=1024,t=1,p=1$short",
		"$argon2id$v=19$m=bad,t=1,p=1$c2FsdA$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword("pw", encoded); err == nil {
			t.Errorf("VerifyPassword(%q) should fail", encoded)
		}
	}
}

func TestParamsAreClamped(t *testing.T) {
	// Hostile or zero config still yields workable parameters.
	params := paramsFromConfig(config.PasswordConfig{})
	if params.Memory < 8 || params.Time < 1 || params.Parallelism < 1 {
		t.Fatalf("zero config produced unusable params %+v", params)
	}
	if params.SaltLen < 8 || params.KeyLen < 16 {
		t.Fatalf("salt/key too small: %+v", params)
	}

	huge := paramsFromConfig(config.PasswordConfig{
		ArgonMemoryKB:    1 << 30,
		ArgonTime:        1000,
		ArgonParallelism: 100000,
		ArgonSaltLen:     10000,
		ArgonKeyLen:      10000,
	})
	if huge.Memory > 512*1024 || huge.Time > 10 || huge.SaltLen > 64 || huge.KeyLen > 64 {
		t.Fatalf("oversized config escaped the clamps: %+v", huge)
	}
}
