package ports

import (
	"github.com/mailmind/contact-analytics/internal/core"
)

// RecordSource defines the interface for ingest adapters that deliver
// normalized email records. Records() is closed by sources with a finite
// input (files); server-backed sources keep it open until Stop.
type RecordSource interface {
	// Start begins producing records.
	Start() error

	// Records returns the channel records are delivered on.
	Records() <-chan *core.EmailRecord

	// Stop stops the source and releases its resources.
	Stop() error
}
