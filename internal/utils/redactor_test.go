package utils

import (
	"net/http"
	"testing"
)

func TestHeaderRedactor_Redact(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"Bearer令牌", "Authorization", "Bearer secret-token-12345", "Bearer ***"},
		{"长密钥保留首尾", "X-API-Key", "api-key-67890", "api-***7890"},
		{"短密钥完全隐藏", "X-Token", "abc", "***"},
		{"Cookie脱敏", "Cookie", "ou_session=abcdef123456", "ou_s***3456"},
		{"普通头部不变", "Accept-Language", "en-US,en;q=0.9", "en-US,en;q=0.9"},
		{"空值", "Authorization", "", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactor.Redact(http.Header{tt.header: []string{tt.value}})
			if got[tt.header] != tt.want {
				t.Errorf("Redact()[%s] = %q, want %q", tt.header, got[tt.header], tt.want)
			}
		})
	}
}

func TestHeaderRedactor_RedactToString(t *testing.T) {
	redactor := NewHeaderRedactor()
	headers := http.Header{
		"User-Agent":    []string{"Bot/1.0"},
		"Authorization": []string{"Bearer xyz"},
		"Accept":        []string{"*/*"},
	}

	want := "Accept: */*, Authorization: Bearer ***, User-Agent: Bot/1.0"
	if got := redactor.RedactToString(headers); got != want {
		t.Errorf("RedactToString() = %q, want %q", got, want)
	}
}
