package store

import (
	"github.com/nhle/accomplishment-tracker/internal/gateway"
)

// SQLiteStore serves as the offline gateway for accomplishment rows.
var _ gateway.Records = (*SQLiteStore)(nil)
