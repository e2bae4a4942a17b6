package reportcrypto

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"report-gateway/internal/constants"
	"report-gateway/internal/platform/logger"
	"report-gateway/internal/security/fieldcipher"
	"report-gateway/internal/security/keyderive"
)

// EncryptReport 加密一筆通報
// 每個 bundle 使用全新的隨機 IV 與 salt；message 與 category 必填，
// 其餘欄位缺席時整個省略。HMAC 在所有密文欄位產生之後計算，
// 覆蓋正規序列化的全部內容。
func EncryptReport(fields ReportFields, keys keyderive.KeyMaterial) (*CipherBundle, error) {
	if fields.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if fields.Category == "" {
		return nil, fmt.Errorf("category is required")
	}

	encKey, err := keys.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	macKey, err := keys.HmacKeyBytes()
	if err != nil {
		return nil, err
	}

	// 使用完後清零密鑰字節（安全增強）
	defer zeroBytes(encKey)
	defer zeroBytes(macKey)

	// 每個 bundle 一組全新的 IV 和 salt
	iv := make([]byte, constants.SessionIVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	salt := make([]byte, constants.BundleSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	bundle := &CipherBundle{
		IV:        hex.EncodeToString(iv),
		Salt:      hex.EncodeToString(salt),
		Timestamp: time.Now().UnixMilli(),
		KeyDerivationParams: KeyDerivationParams{
			Iterations: constants.PBKDF2Iterations,
			Algorithm:  constants.KeyDerivationAlgo,
		},
		Version:   constants.CipherBundleVersion,
		SessionID: keys.SessionID,
	}

	if bundle.EncryptedMessage, err = fieldcipher.EncryptField(fields.Message, encKey, iv); err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}
	if bundle.EncryptedCategory, err = fieldcipher.EncryptField(fields.Category, encKey, iv); err != nil {
		return nil, fmt.Errorf("failed to encrypt category: %w", err)
	}

	if fields.PhotoURL != "" {
		if bundle.EncryptedPhotoURL, err = fieldcipher.EncryptField(fields.PhotoURL, encKey, iv); err != nil {
			return nil, fmt.Errorf("failed to encrypt photo url: %w", err)
		}
	}
	if fields.VideoURL != "" {
		if bundle.EncryptedVideoURL, err = fieldcipher.EncryptField(fields.VideoURL, encKey, iv); err != nil {
			return nil, fmt.Errorf("failed to encrypt video url: %w", err)
		}
	}
	if fields.VideoMetadata != nil {
		metadataJSON, err := json.Marshal(fields.VideoMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize video metadata: %w", err)
		}
		if bundle.EncryptedVideoMetadata, err = fieldcipher.EncryptField(string(metadataJSON), encKey, iv); err != nil {
			return nil, fmt.Errorf("failed to encrypt video metadata: %w", err)
		}
	}

	// HMAC 必須在所有密文欄位就緒後計算
	bundle.HMAC = computeHMAC(bundle, macKey)

	return bundle, nil
}

// DecryptReport 完整性驗證後解密一筆通報
// 先重算 HMAC 並以常數時間比較，不符就回傳 IntegrityError，
// 此時不解密任何欄位。通過後逐欄解密並做明文合理性檢查。
func DecryptReport(bundle *CipherBundle, keys keyderive.KeyMaterial) (*ReportFields, error) {
	if bundle == nil {
		return nil, fmt.Errorf("bundle is nil")
	}

	macKey, err := keys.HmacKeyBytes()
	if err != nil {
		return nil, err
	}
	defer zeroBytes(macKey)

	expected := computeHMAC(bundle, macKey)
	if !hmac.Equal([]byte(expected), []byte(bundle.HMAC)) {
		return nil, &IntegrityError{SessionID: bundle.SessionID, Context: "report bundle"}
	}

	encKey, err := keys.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	defer zeroBytes(encKey)

	iv, err := hex.DecodeString(bundle.IV)
	if err != nil || len(iv) != constants.SessionIVLength {
		return nil, &DecryptionError{Field: "iv", Reason: "malformed iv encoding"}
	}

	fields := &ReportFields{}

	fields.Message, err = decryptRequiredField("message", bundle.EncryptedMessage, encKey, iv)
	if err != nil {
		return nil, err
	}
	fields.Category, err = decryptRequiredField("category", bundle.EncryptedCategory, encKey, iv)
	if err != nil {
		return nil, err
	}

	if bundle.EncryptedPhotoURL != "" {
		fields.PhotoURL, err = decryptRequiredField("photo_url", bundle.EncryptedPhotoURL, encKey, iv)
		if err != nil {
			return nil, err
		}
	}
	if bundle.EncryptedVideoURL != "" {
		fields.VideoURL, err = decryptRequiredField("video_url", bundle.EncryptedVideoURL, encKey, iv)
		if err != nil {
			return nil, err
		}
	}

	if bundle.EncryptedVideoMetadata != "" {
		// 影片 metadata 非關鍵：解密或解析失敗降級為缺席，
		// 只記日誌，不讓整筆解密失敗
		metadataStr, err := fieldcipher.DecryptField(bundle.EncryptedVideoMetadata, encKey, iv)
		if err != nil {
			logger.Warning(context.Background(), "video metadata decryption failed, field dropped",
				logger.WithSessionID(bundle.SessionID))
		} else if metadataStr != "" {
			var metadata map[string]interface{}
			if err := json.Unmarshal([]byte(metadataStr), &metadata); err != nil {
				logger.Warning(context.Background(), "video metadata parse failed, field dropped",
					logger.WithSessionID(bundle.SessionID))
			} else {
				fields.VideoMetadata = metadata
			}
		}
	}

	return fields, nil
}

// decryptRequiredField 解密欄位並做明文合理性檢查
func decryptRequiredField(name, ciphertext string, key, iv []byte) (string, error) {
	plaintext, err := fieldcipher.DecryptField(ciphertext, key, iv)
	if err != nil {
		return "", &DecryptionError{Field: name, Reason: "cipher operation failed"}
	}

	if !isPlausibleText(plaintext) {
		return "", &DecryptionError{Field: name, Reason: "implausible plaintext output"}
	}

	return plaintext, nil
}

// isPlausibleText 明文合理性檢查
// 空結果與 NUL 字節佔比超過 50% 的輸出視為「用錯密鑰解出的亂碼」。
// 50% 是經驗閾值。
func isPlausibleText(s string) bool {
	if s == "" {
		return false
	}

	nulCount := 0
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			nulCount++
		}
	}

	return nulCount*2 <= len(s)
}

// computeHMAC 計算 bundle 的 HMAC-SHA256
func computeHMAC(bundle *CipherBundle, macKey []byte) string {
	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(canonicalSerialization(bundle)))
	return hex.EncodeToString(mac.Sum(nil))
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
