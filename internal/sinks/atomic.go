package sinks

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic 先写同目录下的临时文件,成功后重命名到path
// 任何一步失败都删除临时文件,path上原有的文件保持不变
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ioFault(path, fmt.Errorf("创建目录失败: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return ioFault(path, err)
	}
	tmpPath := tmp.Name()

	err = write(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0644)
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return ioFault(path, err)
	}
	return nil
}
