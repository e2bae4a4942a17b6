package keyderive

import (
	"encoding/hex"
	"testing"

	"report-gateway/internal/constants"
)

func TestDeriveSessionKeys(t *testing.T) {
	keys, err := DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}

	// sessionId 為 16 個十六進制字元
	if len(keys.SessionID) != constants.SessionIDHexLength {
		t.Errorf("SessionID length = %d, want %d", len(keys.SessionID), constants.SessionIDHexLength)
	}
	if _, err := hex.DecodeString(keys.SessionID); err != nil {
		t.Errorf("SessionID is not hex: %v", err)
	}

	// 密鑰為 256-bit hex
	encKey, err := keys.EncryptionKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(encKey) != constants.SessionKeyLength {
		t.Errorf("EncryptionKey length = %d bytes, want %d", len(encKey), constants.SessionKeyLength)
	}

	macKey, err := keys.HmacKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(macKey) != constants.SessionKeyLength {
		t.Errorf("HmacKey length = %d bytes, want %d", len(macKey), constants.SessionKeyLength)
	}

	// 加密密鑰與 HMAC 密鑰必須不同
	if keys.EncryptionKey == keys.HmacKey {
		t.Error("EncryptionKey must differ from HmacKey")
	}

	if keys.DerivedAt.IsZero() {
		t.Error("DerivedAt should be set")
	}
}

func TestDeriveSessionKeys_Independence(t *testing.T) {
	first, err := DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}
	second, err := DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}

	// 兩次派生必須產生完全不同的密鑰與 sessionId
	if first.SessionID == second.SessionID {
		t.Error("two derivations should yield different SessionID")
	}
	if first.EncryptionKey == second.EncryptionKey {
		t.Error("two derivations should yield different EncryptionKey")
	}
	if first.HmacKey == second.HmacKey {
		t.Error("two derivations should yield different HmacKey")
	}
}

func TestDeriveAdminKeys_Deterministic(t *testing.T) {
	first := DeriveAdminKeys("admin", "secret-password", "a1b2c3d4e5f60718")
	second := DeriveAdminKeys("admin", "secret-password", "a1b2c3d4e5f60718")

	// 相同輸入必須產生逐位元組相同的密鑰
	if first.EncryptionKey != second.EncryptionKey {
		t.Error("admin derivation should be deterministic for EncryptionKey")
	}
	if first.HmacKey != second.HmacKey {
		t.Error("admin derivation should be deterministic for HmacKey")
	}
	if first.SessionID != "a1b2c3d4e5f60718" {
		t.Errorf("SessionID = %q, want input sessionId", first.SessionID)
	}
}

func TestDeriveAdminKeys_DifferentInputs(t *testing.T) {
	base := DeriveAdminKeys("admin", "secret-password", "a1b2c3d4e5f60718")

	testCases := []struct {
		name     string
		username string
		password string
		session  string
	}{
		{"Different username", "admin2", "secret-password", "a1b2c3d4e5f60718"},
		{"Different password", "admin", "other-password", "a1b2c3d4e5f60718"},
		{"Different session", "admin", "secret-password", "ffffffffffffffff"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			derived := DeriveAdminKeys(tc.username, tc.password, tc.session)
			if derived.EncryptionKey == base.EncryptionKey {
				t.Error("different inputs should yield different EncryptionKey")
			}
			if derived.HmacKey == base.HmacKey {
				t.Error("different inputs should yield different HmacKey")
			}
		})
	}
}

func TestKeyMaterial_Zero(t *testing.T) {
	keys, err := DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}

	keys.Zero()

	if keys.EncryptionKey != "" || keys.HmacKey != "" || keys.SessionID != "" {
		t.Error("Zero should clear all key fields")
	}
	if !keys.DerivedAt.IsZero() {
		t.Error("Zero should clear DerivedAt")
	}
}

func TestKeyMaterial_Clone(t *testing.T) {
	keys, err := DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}

	clone := keys.Clone()

	// 清除原件不影響副本
	original := keys.EncryptionKey
	keys.Zero()

	if clone.EncryptionKey != original {
		t.Error("Clone should be independent from the original")
	}
}
