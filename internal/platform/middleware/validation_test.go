package middleware

import (
	"strings"
	"testing"
)

func TestValidateReportMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"正常內容", "test report", false},
		{"中文內容", "測試通報內容", false},
		{"空字串", "", true},
		{"只有空白", "   ", true},
		{"NULL 字符注入", "hello\x00world", true},
		{"超過長度限制", strings.Repeat("a", 10001), true},
		{"剛好在限制內", strings.Repeat("a", 10000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReportMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReportMessage(%q) error = %v, wantErr %v", tt.message, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		wantErr  bool
	}{
		{"正常分類", "harassment", false},
		{"空字串", "", true},
		{"NULL 字符", "cat\x00egory", true},
		{"超過長度限制", strings.Repeat("x", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReportCategory(tt.category)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReportCategory(%q) error = %v, wantErr %v", tt.category, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAttachmentURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"空字串表示沒有附件", "", false},
		{"https URL", "https://example.com/photo.jpg", false},
		{"http URL", "http://example.com/video.mp4", false},
		{"javascript 協議", "javascript:alert(1)", true},
		{"NULL 字符", "https://example.com/\x00", true},
		{"超長 URL", "https://example.com/" + strings.Repeat("a", 2048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttachmentURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAttachmentURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"合法 ObjectID", "507f1f77bcf86cd799439011", false},
		{"大寫十六進制", "507F1F77BCF86CD799439011", false},
		{"空字串", "", true},
		{"太短", "507f1f77", true},
		{"非十六進制字符", "507f1f77bcf86cd79943901z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReportID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReportID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"合法會話 ID", "a1b2c3d4e5f60718", false},
		{"太短", "a1b2c3", true},
		{"太長", "a1b2c3d4e5f60718ff", true},
		{"大寫不接受", "A1B2C3D4E5F60718", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"移除 NULL", "a\x00b", "ab"},
		{"保留換行與 Tab", "line1\nline2\tend", "line1\nline2\tend"},
		{"移除其他控制字符", "a\x01\x02b", "ab"},
		{"一般文字不變", "正常文字 normal", "正常文字 normal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeInput(tt.input); got != tt.want {
				t.Errorf("SanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
