package wallet

import (
	"bytes"
	"testing"
)

func testMaster(t *testing.T) *HDKey {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	return master
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestDeriveAccountKey(t *testing.T) {
	master := testMaster(t)

	key, err := master.DeriveAccountKey(0, 0)
	if err != nil {
		t.Fatalf("DeriveAccountKey() error: %v", err)
	}
	if key.Depth() != 5 {
		t.Errorf("depth = %d, want 5", key.Depth())
	}
	if len(key.PrivateKeyBytes()) != 32 {
		t.Errorf("private key length = %d, want 32", len(key.PrivateKeyBytes()))
	}
	if len(key.PublicKeyBytes()) != 33 {
		t.Errorf("public key length = %d, want 33", len(key.PublicKeyBytes()))
	}

	again, _ := testMaster(t).DeriveAccountKey(0, 0)
	if !bytes.Equal(key.PrivateKeyBytes(), again.PrivateKeyBytes()) {
		t.Error("derivation should be deterministic")
	}

	other, _ := master.DeriveAccountKey(0, 1)
	if bytes.Equal(key.PrivateKeyBytes(), other.PrivateKeyBytes()) {
		t.Error("different indices should produce different keys")
	}
}

func TestDerivePath_MatchesSequential(t *testing.T) {
	master := testMaster(t)
	c1, _ := master.DeriveChild(PurposeBIP44)
	c2, _ := c1.DeriveChild(CoinTypeEther)

	combined, err := master.DerivePath(PurposeBIP44, CoinTypeEther)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if !bytes.Equal(c2.PrivateKeyBytes(), combined.PrivateKeyBytes()) {
		t.Error("DerivePath should equal sequential DeriveChild")
	}
}

func TestNeuter(t *testing.T) {
	master := testMaster(t)
	pub := master.Neuter()
	if pub.IsPrivate() || pub.PrivateKeyBytes() != nil {
		t.Error("neutered key should carry no private material")
	}
	if !bytes.Equal(master.PublicKeyBytes(), pub.PublicKeyBytes()) {
		t.Error("neutered key should have the same public key")
	}
}
