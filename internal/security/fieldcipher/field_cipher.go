package fieldcipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"report-gateway/internal/constants"
)

// FieldCipher 單欄位加密器
// AES-256-CBC + PKCS#7 填充。IV 由呼叫方提供（同一 bundle 內的欄位
// 共用同一個 IV，bundle 之間每次加密都必須換新 IV）。
// CBC 模式特點：
// - 需要填充到區塊邊界
// - 相同明文在不同 IV 下產生不同密文
// - 密文以 base64 編碼便於存儲和傳輸

// EncryptField 加密單個字串欄位
func EncryptField(plaintext string, key, iv []byte) (string, error) {
	if len(key) != constants.SessionKeyLength {
		return "", fmt.Errorf("key must be %d bytes (256 bits), got %d bytes", constants.SessionKeyLength, len(key))
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes, got %d bytes", aes.BlockSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)

	// 使用完後清零填充緩衝區（安全增強）
	defer func() {
		for i := range padded {
			padded[i] = 0
		}
	}()

	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptField 解密單個字串欄位
// 密鑰或 IV 與密文來源不符時，可能回傳填充錯誤，也可能解出亂碼；
// 亂碼的判斷由上層的合理性檢查負責。
func DecryptField(ciphertext string, key, iv []byte) (string, error) {
	if len(key) != constants.SessionKeyLength {
		return "", fmt.Errorf("key must be %d bytes (256 bits), got %d bytes", constants.SessionKeyLength, len(key))
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes, got %d bytes", aes.BlockSize, len(iv))
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of block size", len(data))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, data)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

// pkcs7Pad PKCS#7 填充
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad 移除 PKCS#7 填充
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length %d", len(data))
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding")
	}

	for i := len(data) - padding; i < len(data); i++ {
		if int(data[i]) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}

	return data[:len(data)-padding], nil
}
