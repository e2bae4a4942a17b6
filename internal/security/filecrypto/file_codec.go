package filecrypto

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"report-gateway/internal/constants"
	"report-gateway/internal/security/fieldcipher"
	"report-gateway/internal/security/keyderive"
	"report-gateway/internal/security/reportcrypto"
)

// FileCipherBundle 檔案密文包
// 線上格式，欄位名稱不可變動。encryptedContent 為各分塊密文以
// "|" 連接的字串（base64 輸出不含 "|"，可安全作為分隔符）。
type FileCipherBundle struct {
	EncryptedContent string       `json:"encryptedContent" bson:"encryptedContent"`
	Metadata         FileMetadata `json:"metadata" bson:"metadata"`
	CryptoParams     CryptoParams `json:"cryptoParams" bson:"cryptoParams"`
	SessionID        string       `json:"sessionId" bson:"sessionId"`
	Timestamp        int64        `json:"timestamp" bson:"timestamp"`
}

// FileMetadata 檔案元數據
type FileMetadata struct {
	OriginalSize int64  `json:"originalSize" bson:"originalSize"`
	MimeType     string `json:"mimeType" bson:"mimeType"`
	Filename     string `json:"filename" bson:"filename"`
	ChunkCount   int    `json:"chunkCount" bson:"chunkCount"`
}

// CryptoParams 檔案加密參數
type CryptoParams struct {
	IV   string `json:"iv" bson:"iv"`     // hex，16 bytes
	Salt string `json:"salt" bson:"salt"` // hex，32 bytes
	HMAC string `json:"hmac" bson:"hmac"`
}

// OversizeRejection 檔案超過大小限制
// 這不是 error：超大檔案是使用者可修正的預期狀況，在任何加密
// 工作開始之前以結構化結果回報。
type OversizeRejection struct {
	ActualSize    int64  `json:"actualSize"`
	MaxSize       int64  `json:"maxSize"`
	EstimatedSize int64  `json:"estimatedSize,omitempty"` // 估算的加密後大小
	Reason        string `json:"reason"`
}

// ProgressFunc 粗粒度進度回調
// 只在分塊數超過 10 時觸發，每 ⌈chunks/10⌉ 個分塊回報一次。
type ProgressFunc func(done, total int)

// CheckSize 檢查檔案是否可加密
// 超過固定上限（100 MiB），或估算的加密後大小（base64 膨脹 +
// 分塊填充 + 分隔符）超過上限的 1.5 倍時拒絕。
func CheckSize(size int64) *OversizeRejection {
	maxSize := int64(constants.DefaultMaxFileSize)

	if size > maxSize {
		return &OversizeRejection{
			ActualSize: size,
			MaxSize:    maxSize,
			Reason:     "file exceeds maximum size",
		}
	}

	estimated := EstimateEncryptedSize(size)
	if estimated > maxSize+maxSize/2 {
		return &OversizeRejection{
			ActualSize:    size,
			MaxSize:       maxSize,
			EstimatedSize: estimated,
			Reason:        "estimated encrypted size exceeds limit",
		}
	}

	return nil
}

// EstimateEncryptedSize 估算加密後的大小（政策用途的保守下界）
// 模型：base64 將 n 字節膨脹為 4*⌈n/3⌉，每個分塊最多補一個
// 16 字節的 PKCS#7 區塊，分塊之間各有一個分隔符。膨脹只計一次，
// 1.5 倍上限只用來攔截病態輸入，不會拒絕上限內的正常檔案。
func EstimateEncryptedSize(size int64) int64 {
	if size <= 0 {
		return 0
	}

	base64Len := 4 * ((size + 2) / 3)

	chunkSize := int64(constants.FileChunkSize)
	chunks := (base64Len + chunkSize - 1) / chunkSize

	return base64Len + chunks*aes.BlockSize + (chunks - 1)
}

// EncryptFile 分塊加密一個檔案
// 檔案先整體 base64，再切成 1 MiB 的 base64 文本分塊，各分塊以
// 同一組 key+iv 獨立加密（單一共享 IV 為既有 bundle 格式的約定，
// 弱點記錄於 DESIGN.md）。大小檢查在任何加密工作之前完成。
func EncryptFile(fileBytes []byte, mimeType, filename string, keys keyderive.KeyMaterial, progress ProgressFunc) (*FileCipherBundle, *OversizeRejection, error) {
	if len(fileBytes) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}

	if rejection := CheckSize(int64(len(fileBytes))); rejection != nil {
		return nil, rejection, nil
	}

	encKey, err := keys.EncryptionKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	macKey, err := keys.HmacKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	defer zeroBytes(encKey)
	defer zeroBytes(macKey)

	iv := make([]byte, constants.SessionIVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	salt := make([]byte, constants.BundleSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	content := base64.StdEncoding.EncodeToString(fileBytes)
	chunks := splitChunks(content, constants.FileChunkSize)

	// 進度回報間隔：⌈chunks/10⌉，只在分塊數超過 10 時啟用
	reportEvery := 0
	if progress != nil && len(chunks) > constants.ProgressReportBuckets {
		reportEvery = (len(chunks) + constants.ProgressReportBuckets - 1) / constants.ProgressReportBuckets
	}

	encryptedChunks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		encrypted, err := fieldcipher.EncryptField(chunk, encKey, iv)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encrypt chunk %d: %w", i, err)
		}
		encryptedChunks = append(encryptedChunks, encrypted)

		if reportEvery > 0 && (i+1)%reportEvery == 0 {
			progress(i+1, len(chunks))
		}
	}
	if reportEvery > 0 {
		progress(len(chunks), len(chunks))
	}

	bundle := &FileCipherBundle{
		EncryptedContent: strings.Join(encryptedChunks, constants.FileChunkDelimiter),
		Metadata: FileMetadata{
			OriginalSize: int64(len(fileBytes)),
			MimeType:     mimeType,
			Filename:     filename,
			ChunkCount:   len(chunks),
		},
		CryptoParams: CryptoParams{
			IV:   hex.EncodeToString(iv),
			Salt: hex.EncodeToString(salt),
		},
		SessionID: keys.SessionID,
		Timestamp: time.Now().UnixMilli(),
	}

	bundle.CryptoParams.HMAC = computeFileHMAC(bundle, macKey)

	return bundle, nil, nil
}

// DecryptFile 完整性驗證後解密一個檔案
// 回傳重組後的 base64 內容，由呼叫方還原為二進制。
func DecryptFile(bundle *FileCipherBundle, keys keyderive.KeyMaterial) (string, error) {
	if bundle == nil {
		return "", fmt.Errorf("bundle is nil")
	}

	macKey, err := keys.HmacKeyBytes()
	if err != nil {
		return "", err
	}
	defer zeroBytes(macKey)

	expected := computeFileHMAC(bundle, macKey)
	if !hmac.Equal([]byte(expected), []byte(bundle.CryptoParams.HMAC)) {
		return "", &reportcrypto.IntegrityError{
			SessionID: bundle.SessionID,
			Context:   "file bundle, file may be corrupted",
		}
	}

	encKey, err := keys.EncryptionKeyBytes()
	if err != nil {
		return "", err
	}
	defer zeroBytes(encKey)

	iv, err := hex.DecodeString(bundle.CryptoParams.IV)
	if err != nil || len(iv) != constants.SessionIVLength {
		return "", &reportcrypto.DecryptionError{Field: "iv", Reason: "malformed iv encoding"}
	}

	encryptedChunks := strings.Split(bundle.EncryptedContent, constants.FileChunkDelimiter)
	if len(encryptedChunks) != bundle.Metadata.ChunkCount {
		return "", &reportcrypto.IntegrityError{
			SessionID: bundle.SessionID,
			Context:   "file bundle chunk count mismatch",
		}
	}

	var sb strings.Builder
	for i, chunk := range encryptedChunks {
		plaintext, err := fieldcipher.DecryptField(chunk, encKey, iv)
		if err != nil {
			return "", &reportcrypto.DecryptionError{
				Field:  "chunk " + strconv.Itoa(i),
				Reason: "cipher operation failed",
			}
		}
		sb.WriteString(plaintext)
	}

	return sb.String(), nil
}

// splitChunks 按固定大小切分 base64 文本
func splitChunks(content string, chunkSize int) []string {
	if content == "" {
		return nil
	}

	chunks := make([]string, 0, (len(content)+chunkSize-1)/chunkSize)
	for start := 0; start < len(content); start += chunkSize {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[start:end])
	}
	return chunks
}

// computeFileHMAC HMAC 覆蓋 encryptedContent ∥ 正規化 metadata ∥ sessionId
func computeFileHMAC(bundle *FileCipherBundle, macKey []byte) string {
	var sb strings.Builder
	sb.WriteString(bundle.EncryptedContent)
	sb.WriteString("|originalSize=")
	sb.WriteString(strconv.FormatInt(bundle.Metadata.OriginalSize, 10))
	sb.WriteString("|mimeType=")
	sb.WriteString(bundle.Metadata.MimeType)
	sb.WriteString("|filename=")
	sb.WriteString(bundle.Metadata.Filename)
	sb.WriteString("|chunkCount=")
	sb.WriteString(strconv.Itoa(bundle.Metadata.ChunkCount))
	sb.WriteString("|sessionId=")
	sb.WriteString(bundle.SessionID)

	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
