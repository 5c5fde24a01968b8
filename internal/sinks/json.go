package sinks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

// DefaultJSONFile 默认JSON文件名
const DefaultJSONFile = "offerup_items.json"

// WriteJSON 将记录写为一个JSON数组,4空格缩进
// 记录为空时不创建文件
func WriteJSON(path string, records []models.ListingRecord) (int, error) {
	if len(records) == 0 {
		utils.Info("没有可保存的记录,跳过JSON输出")
		return 0, nil
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("序列化JSON失败: %w", err)
	}

	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return 0, err
	}

	utils.Infof("💾 已保存 %d 条记录到 %s", len(records), path)
	return len(records), nil
}

// ReadJSON 读取WriteJSON生成的文件
func ReadJSON(path string) ([]models.ListingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioFault(path, err)
	}
	var records []models.ListingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &models.HarvestError{Kind: models.ParseFault, URL: path, Cause: err}
	}
	return records, nil
}
