package reportcrypto

import (
	"errors"
	"testing"

	"report-gateway/internal/security/keyderive"
)

func freshKeys(t *testing.T) keyderive.KeyMaterial {
	t.Helper()

	keys, err := keyderive.DeriveSessionKeys()
	if err != nil {
		t.Fatal(err)
	}
	return keys.Clone()
}

func TestEncryptReport_RoundTrip(t *testing.T) {
	keys := freshKeys(t)

	testCases := []struct {
		name   string
		fields ReportFields
	}{
		{
			name:   "Required fields only",
			fields: ReportFields{Message: "incident in building A", Category: "safety"},
		},
		{
			name: "With photo",
			fields: ReportFields{
				Message:  "broken equipment",
				Category: "maintenance",
				PhotoURL: "https://storage.example.com/p/abc123.jpg",
			},
		},
		{
			name: "All fields",
			fields: ReportFields{
				Message:  "詳細的事件描述，包含中文內容",
				Category: "harassment",
				PhotoURL: "data:image/png;base64,iVBORw0KGgo=",
				VideoURL: "https://storage.example.com/v/xyz789.mp4",
				VideoMetadata: map[string]interface{}{
					"duration": 12.5,
					"codec":    "h264",
				},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := EncryptReport(tc.fields, keys)
			if err != nil {
				t.Fatalf("Encryption failed: %v", err)
			}

			// 密文不等於明文
			if bundle.EncryptedMessage == tc.fields.Message {
				t.Error("EncryptedMessage should differ from plaintext")
			}

			// 缺席的可選欄位必須整個省略
			if tc.fields.PhotoURL == "" && bundle.EncryptedPhotoURL != "" {
				t.Error("absent photo_url should be omitted from bundle")
			}
			if tc.fields.VideoURL == "" && bundle.EncryptedVideoURL != "" {
				t.Error("absent video_url should be omitted from bundle")
			}
			if tc.fields.VideoMetadata == nil && bundle.EncryptedVideoMetadata != "" {
				t.Error("absent video_metadata should be omitted from bundle")
			}

			decrypted, err := DecryptReport(bundle, keys)
			if err != nil {
				t.Fatalf("Decryption failed: %v", err)
			}

			if decrypted.Message != tc.fields.Message {
				t.Errorf("Message mismatch.\nWant: %q\nGot: %q", tc.fields.Message, decrypted.Message)
			}
			if decrypted.Category != tc.fields.Category {
				t.Errorf("Category mismatch.\nWant: %q\nGot: %q", tc.fields.Category, decrypted.Category)
			}
			if decrypted.PhotoURL != tc.fields.PhotoURL {
				t.Errorf("PhotoURL mismatch.\nWant: %q\nGot: %q", tc.fields.PhotoURL, decrypted.PhotoURL)
			}
			if decrypted.VideoURL != tc.fields.VideoURL {
				t.Errorf("VideoURL mismatch.\nWant: %q\nGot: %q", tc.fields.VideoURL, decrypted.VideoURL)
			}
			if tc.fields.VideoMetadata != nil {
				if decrypted.VideoMetadata == nil {
					t.Fatal("VideoMetadata lost in round trip")
				}
				if decrypted.VideoMetadata["codec"] != tc.fields.VideoMetadata["codec"] {
					t.Error("VideoMetadata codec mismatch")
				}
			}
		})
	}
}

func TestEncryptReport_BundleShape(t *testing.T) {
	keys := freshKeys(t)

	bundle, err := EncryptReport(ReportFields{Message: "m", Category: "c"}, keys)
	if err != nil {
		t.Fatal(err)
	}

	// IV 為 16 bytes hex，salt 為 32 bytes hex
	if len(bundle.IV) != 32 {
		t.Errorf("IV hex length = %d, want 32", len(bundle.IV))
	}
	if len(bundle.Salt) != 64 {
		t.Errorf("Salt hex length = %d, want 64", len(bundle.Salt))
	}
	if bundle.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", bundle.Version)
	}
	if bundle.KeyDerivationParams.Iterations != 100000 {
		t.Errorf("Iterations = %d, want 100000", bundle.KeyDerivationParams.Iterations)
	}
	if bundle.KeyDerivationParams.Algorithm != "PBKDF2-SHA256" {
		t.Errorf("Algorithm = %q, want PBKDF2-SHA256", bundle.KeyDerivationParams.Algorithm)
	}
	if bundle.SessionID != keys.SessionID {
		t.Error("bundle SessionID should carry the key material's sessionId")
	}
	if bundle.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
	if bundle.HMAC == "" {
		t.Error("HMAC should be set")
	}

	// 每個 bundle 的 IV 必須是新的
	second, err := EncryptReport(ReportFields{Message: "m", Category: "c"}, keys)
	if err != nil {
		t.Fatal(err)
	}
	if second.IV == bundle.IV {
		t.Error("each bundle must use a fresh IV")
	}
}

// flipChar 翻轉字串中第一個字元（十六進制與 base64 都適用）
func flipChar(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}

func TestDecryptReport_TamperDetection(t *testing.T) {
	keys := freshKeys(t)

	fields := ReportFields{
		Message:  "tamper target",
		Category: "safety",
		PhotoURL: "https://example.com/p.jpg",
		VideoURL: "https://example.com/v.mp4",
		VideoMetadata: map[string]interface{}{
			"duration": 3.2,
		},
	}

	testCases := []struct {
		name   string
		mutate func(b *CipherBundle)
	}{
		{"Tampered message", func(b *CipherBundle) { b.EncryptedMessage = flipChar(b.EncryptedMessage) }},
		{"Tampered category", func(b *CipherBundle) { b.EncryptedCategory = flipChar(b.EncryptedCategory) }},
		{"Tampered photo url", func(b *CipherBundle) { b.EncryptedPhotoURL = flipChar(b.EncryptedPhotoURL) }},
		{"Tampered video url", func(b *CipherBundle) { b.EncryptedVideoURL = flipChar(b.EncryptedVideoURL) }},
		{"Tampered video metadata", func(b *CipherBundle) { b.EncryptedVideoMetadata = flipChar(b.EncryptedVideoMetadata) }},
		{"Tampered iv", func(b *CipherBundle) { b.IV = flipChar(b.IV) }},
		{"Tampered salt", func(b *CipherBundle) { b.Salt = flipChar(b.Salt) }},
		{"Tampered sessionId", func(b *CipherBundle) { b.SessionID = flipChar(b.SessionID) }},
		{"Tampered timestamp", func(b *CipherBundle) { b.Timestamp++ }},
		{"Tampered hmac", func(b *CipherBundle) { b.HMAC = flipChar(b.HMAC) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := EncryptReport(fields, keys)
			if err != nil {
				t.Fatal(err)
			}

			tc.mutate(bundle)

			_, err = DecryptReport(bundle, keys)
			if err == nil {
				t.Fatal("tampered bundle should fail decryption")
			}

			var integrityErr *IntegrityError
			if !errors.As(err, &integrityErr) {
				t.Errorf("want IntegrityError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecryptReport_WrongKeys(t *testing.T) {
	keys := freshKeys(t)
	otherKeys := freshKeys(t)

	bundle, err := EncryptReport(ReportFields{Message: "secret", Category: "safety"}, keys)
	if err != nil {
		t.Fatal(err)
	}

	// 不同的密鑰有不同的 HMAC 密鑰，驗證必定失敗
	_, err = DecryptReport(bundle, otherKeys)
	if err == nil {
		t.Fatal("decryption with different keys should fail")
	}

	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Errorf("want IntegrityError, got %T: %v", err, err)
	}
}

func TestDecryptReport_ExampleScenario(t *testing.T) {
	keys := freshKeys(t)

	bundle, err := EncryptReport(ReportFields{Message: "test report", Category: "harassment"}, keys)
	if err != nil {
		t.Fatal(err)
	}

	if bundle.EncryptedMessage == "test report" {
		t.Error("encryptedMessage must differ from plaintext")
	}

	decrypted, err := DecryptReport(bundle, keys)
	if err != nil {
		t.Fatal(err)
	}
	if decrypted.Message != "test report" || decrypted.Category != "harassment" {
		t.Errorf("round trip mismatch: %+v", decrypted)
	}

	// 用另一組新派生的密鑰解密必須是完整性錯誤
	otherKeys := freshKeys(t)
	_, err = DecryptReport(bundle, otherKeys)
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Errorf("want IntegrityError with foreign keys, got %T: %v", err, err)
	}
}

func TestEncryptReport_RequiredFields(t *testing.T) {
	keys := freshKeys(t)

	if _, err := EncryptReport(ReportFields{Category: "safety"}, keys); err == nil {
		t.Error("missing message should be rejected")
	}
	if _, err := EncryptReport(ReportFields{Message: "m"}, keys); err == nil {
		t.Error("missing category should be rejected")
	}
}

func TestIsPlausibleText(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want bool
	}{
		{"Normal text", "hello", true},
		{"Empty", "", false},
		{"All NUL", "\x00\x00\x00\x00", false},
		{"Majority NUL", "a\x00\x00\x00", false},
		{"Half NUL", "ab\x00\x00", true},
		{"Minority NUL", "abc\x00", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isPlausibleText(tc.in); got != tc.want {
				t.Errorf("isPlausibleText(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
