package inventory

import "context"

// ChangeHandler receives stock change notifications after commit, e.g. to
// invalidate read caches.
type ChangeHandler interface {
	HandleStockChanged(ctx context.Context, evt StockChangedEvent) error
}
