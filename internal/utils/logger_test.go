package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLogConfig(dir, level string) LogConfig {
	return LogConfig{
		Level:      level,
		LogDir:     dir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
		NoColor:    true,
	}
}

func TestInitLogger(t *testing.T) {
	tempDir := t.TempDir()
	var console bytes.Buffer

	if err := InitLoggerWithConsole(newTestLogConfig(tempDir, "debug"), &console); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	mainLogPath := filepath.Join(tempDir, MainLogFile)
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("主日志文件未创建: %v", err)
	}
	if !strings.Contains(string(content), "测试调试日志") {
		t.Error("debug级别日志应写入主日志")
	}
	if !strings.Contains(console.String(), "测试信息日志") {
		t.Error("控制台未收到日志")
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()
	var console bytes.Buffer

	if err := InitLoggerWithConsole(newTestLogConfig(tempDir, "info"), &console); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	Infof("格式化信息日志: %s", "测试")
	Warnf("格式化警告日志: %d", 123)
	Debugf("格式化调试日志: %v", true)

	content, err := os.ReadFile(filepath.Join(tempDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), "格式化警告日志: 123") {
		t.Error("warn日志缺失")
	}
	if strings.Contains(string(content), "格式化调试日志") {
		t.Error("info级别下不应输出debug日志")
	}
}

func TestErrorLogOnlyReceivesErrors(t *testing.T) {
	tempDir := t.TempDir()
	var console bytes.Buffer

	if err := InitLoggerWithConsole(newTestLogConfig(tempDir, "debug"), &console); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("普通信息不应进入错误日志")
	Errorf("页面请求失败: %s", "HTTP 503")

	content, err := os.ReadFile(filepath.Join(tempDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if !strings.Contains(string(content), "页面请求失败") {
		t.Error("错误日志缺少error级别记录")
	}
	if strings.Contains(string(content), "普通信息不应进入错误日志") {
		t.Error("错误日志中出现了info级别记录")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
