package sinks

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable 默认表名
const DefaultTable = "harvested_listings"

// ErrPostgresUnavailable 配置有效但数据库连不上或无法建表
var ErrPostgresUnavailable = errors.New("PostgreSQL不可用")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresSinkConfig PostgreSQL输出配置
type PostgresSinkConfig struct {
	DSN       string
	Table     string
	MaxConns  int
	BatchSize int
}

// PostgresSink 将一次运行的记录批量写入PostgreSQL
// 以 (run_id, position) 为主键,不做跨运行去重
type PostgresSink struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
}

// NewPostgresSink 连接数据库
func NewPostgresSink(ctx context.Context, cfg PostgresSinkConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("未配置 postgres.dsn")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("无效的表名: %q", cfg.Table)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("解析 postgres.dsn 失败: %w", err)
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPostgresUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrPostgresUnavailable, err)
	}

	return &PostgresSink{
		pool:      pool,
		table:     pgx.Identifier{cfg.Table}.Sanitize(),
		batchSize: cfg.BatchSize,
	}, nil
}

// EnsureSchema 建表(已存在时跳过)
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		run_id       TEXT        NOT NULL,
		position     INTEGER     NOT NULL,
		username     TEXT        NOT NULL,
		item_id      TEXT,
		title        TEXT        NOT NULL,
		price        TEXT        NOT NULL,
		description  TEXT        NOT NULL,
		location     TEXT        NOT NULL,
		image_url    TEXT,
		post_date    TEXT        NOT NULL,
		item_url     TEXT        NOT NULL,
		harvested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, position)
	)`)
	if err != nil {
		return fmt.Errorf("%w: 创建表 %s 失败: %w", ErrPostgresUnavailable, s.table, err)
	}
	return nil
}

// Write 按会话记录顺序批量插入,返回插入条数
func (s *PostgresSink) Write(ctx context.Context, session *models.HarvestSession) (int, error) {
	records := session.Records()
	if len(records) == 0 {
		utils.Info("没有可保存的记录,跳过PostgreSQL输出")
		return 0, nil
	}

	query := `INSERT INTO ` + s.table + `
		(run_id, position, username, item_id, title, price, description, location, image_url, post_date, item_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	total := 0
	for i := 0; i < len(records); i += s.batchSize {
		j := i + s.batchSize
		if j > len(records) {
			j = len(records)
		}

		b := &pgx.Batch{}
		for k, rec := range records[i:j] {
			b.Queue(query,
				session.ID, i+k, session.Username, rec.ItemID, rec.Title, rec.Price,
				rec.Description, rec.Location, rec.ImageURL, rec.PostDate, rec.ItemURL,
			)
		}

		br := s.pool.SendBatch(ctx, b)
		for k := 0; k < b.Len(); k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, fmt.Errorf("写入PostgreSQL失败: %w", err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, fmt.Errorf("写入PostgreSQL失败: %w", err)
		}
	}

	utils.Infof("🗄️  已写入 %d 条记录到 %s", total, s.table)
	return total, nil
}

// Close 关闭连接池
func (s *PostgresSink) Close() {
	s.pool.Close()
}
