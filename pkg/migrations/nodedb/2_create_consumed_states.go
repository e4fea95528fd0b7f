package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/trader-flows/pkg/notary"
	mghelper "github.com/chainsafe/trader-flows/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating consumed_states table...")
		if err := mghelper.CreateSchema(ctx, db, &notary.ConsumedStateDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &notary.ConsumedStateDao{}, "consuming_tx_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping consumed_states table...")
		if err := mghelper.DropModelIndexes(ctx, db, &notary.ConsumedStateDao{}, "consuming_tx_id"); err != nil {
			return err
		}
		return mghelper.DropTables(ctx, db, &notary.ConsumedStateDao{})
	})
}
