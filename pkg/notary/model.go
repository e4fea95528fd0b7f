package notary

import (
	"time"

	"github.com/uptrace/bun"
)

// ConsumedStateDao maps to the 'consumed_states' table. One row per consumed
// state reference, keyed by the producing transaction and output index.
type ConsumedStateDao struct {
	bun.BaseModel `bun:"table:consumed_states,alias:cs"`
	TxID          string    `bun:"tx_id,pk,type:varchar(64)"`
	OutputIndex   int       `bun:"output_index,pk"`
	ConsumingTxID string    `bun:"consuming_tx_id,notnull,type:varchar(64)"`
	Requester     string    `bun:"requester,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
