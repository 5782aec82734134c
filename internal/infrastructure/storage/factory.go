package storage

import (
	"context"
	"fmt"

	"github.com/erp/icledger/internal/application/finance"
	infraconfig "github.com/erp/icledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewReportArchive builds the archive selected by cfg.Driver. The "none"
// driver returns nil, which the tax engine treats as archiving disabled.
func NewReportArchive(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (finance.ReportArchive, error) {
	switch cfg.Driver {
	case "", "none":
		logger.Info("report archiving disabled")
		return nil, nil
	case "local":
		archive, err := NewLocalArchive(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("archiving reports to local directory", zap.String("dir", cfg.Dir))
		return archive, nil
	case "s3":
		archive, err := NewS3Archive(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("archiving reports to S3", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
		return archive, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
