package sync

import (
	"context"
	"time"
)

// Engine reconciles a client's task tree with the store.
//
// An engine is safe for concurrent use. It adds no locking of its own:
// concurrent batches touching the same task resolve as last write wins per
// field, exactly as the store applies them.
type Engine interface {
	// Sync applies a batch and reports the result.
	//
	// Items are applied in a fixed order: every added task, then every
	// update, then every removal, each category in input order. Each item
	// is persisted before the next one starts, so when the store fails
	// partway the items before the failure stay committed. In that case the
	// response has Success false and the fixed SyncFailedMessage.
	//
	// Updates and removals that name an id <= 0 or an id the store does
	// not know are skipped without error.
	//
	// The response revision is the request revision plus one. It is
	// arithmetic only and says nothing about server state.
	//
	// Sync never returns an error: every failure is folded into the
	// response envelope.
	Sync(ctx context.Context, req *SyncRequest) *SyncResponse

	// Load returns every task in canonical order. requestID is echoed; when
	// empty, the current Unix time in milliseconds is used. The revision is
	// always LoadRevision.
	Load(ctx context.Context, requestID string) (*LoadResponse, error)
}

// Notifier is told about every batch that committed something.
type Notifier interface {
	NotifySync(ChangeSet)
}

// Observer receives batch and item outcomes, typically for metrics.
type Observer interface {
	// ObserveBatch records one finished batch. outcome is "success" or
	// "failure".
	ObserveBatch(outcome string, d time.Duration)

	// ObserveItem records one item. kind is "added", "updated" or
	// "removed"; outcome is "applied", "skipped" or "failed".
	ObserveItem(kind, outcome string)

	// ObserveLoad records one load and the number of rows it returned.
	ObserveLoad(outcome string, rows int, d time.Duration)
}
