package metrics

import (
	"context"
	"database/sql"
	"time"
)

// DBCollector 定期采集数据库连接池状态
type DBCollector struct {
	db       *sql.DB
	interval time.Duration
}

// NewDBCollector 创建采集器
func NewDBCollector(db *sql.DB, interval time.Duration) *DBCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &DBCollector{db: db, interval: interval}
}

// Run 阻塞运行直到 ctx 取消
func (c *DBCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collectOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

func (c *DBCollector) collectOnce() {
	if c.db == nil {
		return
	}
	stats := c.db.Stats()
	DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
}
