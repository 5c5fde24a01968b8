package sinks

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

// DefaultCSVFile 默认CSV文件名
const DefaultCSVFile = "offerup_items.csv"

// WriteCSV 将记录写入CSV文件,首行为表头
// 记录为空时只输出提示,不创建文件;写入失败时不留下半个文件
func WriteCSV(path string, records []models.ListingRecord) (int, error) {
	if len(records) == 0 {
		utils.Info("没有可保存的记录,跳过CSV输出")
		return 0, nil
	}

	err := writeAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(models.ListingFields); err != nil {
			return err
		}
		for _, rec := range records {
			if err := w.Write(rec.Row()); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return 0, err
	}

	utils.Infof("💾 已保存 %d 条记录到 %s", len(records), path)
	return len(records), nil
}

// ReadCSV 读取WriteCSV生成的文件
func ReadCSV(path string) ([]models.ListingRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ioFault(path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(models.ListingFields)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &models.HarvestError{Kind: models.ParseFault, URL: path, Cause: err}
	}
	if len(rows) == 0 {
		return nil, &models.HarvestError{Kind: models.ParseFault, URL: path, Cause: fmt.Errorf("缺少表头")}
	}

	records := make([]models.ListingRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := models.RecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func ioFault(path string, err error) error {
	return &models.HarvestError{Kind: models.IOFault, URL: path, Cause: err}
}
