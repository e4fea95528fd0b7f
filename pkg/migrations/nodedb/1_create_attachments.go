package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	mghelper "github.com/chainsafe/trader-flows/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating attachments table...")
		return mghelper.CreateSchema(ctx, db, &attachment.AttachmentDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping attachments table...")
		return mghelper.DropTables(ctx, db, &attachment.AttachmentDao{})
	})
}
