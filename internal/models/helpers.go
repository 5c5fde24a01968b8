package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// usernamePattern 允许的用户名字符
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// NormalizeUsername 去除空白和前导@,并检查字符合法性
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if name == "" {
		return "", fmt.Errorf("用户名不能为空")
	}
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("用户名包含非法字符: %q", raw)
	}
	return name, nil
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
