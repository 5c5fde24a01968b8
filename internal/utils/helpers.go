package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/checarsner/crosspostit/internal/models"
)

// ReadUsernamesFromFile 从文件中读取用户名列表
// 每行一个用户名,忽略空行和#注释,重复的用户名只保留第一次出现
func ReadUsernamesFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开用户名文件失败: %w", err)
	}
	defer file.Close()

	usernames := make([]string, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, err := models.NormalizeUsername(line)
		if err != nil {
			Warnf("跳过无效用户名 (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		if seen[name] {
			Debugf("跳过重复用户名 (行 %d): %s", lineNum, name)
			continue
		}
		seen[name] = true
		usernames = append(usernames, name)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取用户名文件失败: %w", err)
	}

	if len(usernames) == 0 {
		return nil, fmt.Errorf("用户名文件中没有有效的用户名")
	}

	Infof("从文件加载了 %d 个用户名", len(usernames))
	return usernames, nil
}
