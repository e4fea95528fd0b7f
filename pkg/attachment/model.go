package attachment

import (
	"time"

	"github.com/uptrace/bun"
)

// AttachmentDao maps to the 'attachments' table.
type AttachmentDao struct {
	bun.BaseModel `bun:"table:attachments,alias:att"`
	ID            string    `bun:"id,pk,type:varchar(64)"`
	Data          []byte    `bun:"data,notnull,type:bytea"`
	Size          int       `bun:"size,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
