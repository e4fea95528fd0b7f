package attachment

import (
	"fmt"
	"os"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/config"
)

// NewFromConfig builds the configured backend. db is only used by the postgres backend.
func NewFromConfig(cfg *config.AttachmentConfig, db *bun.DB, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir, logger)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres attachment backend needs a database connection")
		}
		return NewPGStore(db), nil
	case "s3":
		return NewS3Store(S3Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: os.Getenv(cfg.S3.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.S3.SecretKeyEnv),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown attachment backend %q", cfg.Backend)
	}
}
