package main

import (
	"fmt"

	"github.com/checarsner/crosspostit/internal/core"
	"github.com/checarsner/crosspostit/internal/models"
)

// ValidateFlags 验证命令行标志与合并后的配置
func ValidateFlags(username, userFile string, cfg *core.Config) error {
	if username != "" && userFile != "" {
		return fmt.Errorf("--user 与 --user-file 不能同时使用")
	}

	if username != "" {
		if _, err := models.NormalizeUsername(username); err != nil {
			return fmt.Errorf("无效的用户名: %w", err)
		}
	}

	if cfg == nil {
		return fmt.Errorf("配置未加载")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	return nil
}
