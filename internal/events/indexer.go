package events

import (
	"context"
	"time"

	"classroom-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// Index records cross-references between a class and its records.
type Index interface {
	Add(ctx context.Context, className, kind string, ids []string) error
}

// Indexer consumes record-created events and keeps an Index up to date.
// Failures are logged and the event is dropped.
type Indexer struct {
	events  <-chan domain.RecordCreated
	cancel  func()
	index   Index
	logger  *zap.Logger
	timeout time.Duration
}

// NewIndexer subscribes immediately so no event published after it returns is
// missed, even before Run starts.
func NewIndexer(hub *Hub, index Index, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, cancel := hub.Subscribe()
	return &Indexer{
		events:  ch,
		cancel:  cancel,
		index:   index,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Run applies events until ctx is done or the hub closes.
func (ix *Indexer) Run(ctx context.Context) {
	defer ix.cancel()
	for {
		select {
		case event, ok := <-ix.events:
			if !ok {
				return
			}
			ix.apply(ctx, event)
		case <-ctx.Done():
			return
		}
	}
}

func (ix *Indexer) apply(ctx context.Context, event domain.RecordCreated) {
	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()
	if err := ix.index.Add(ctx, event.ClassName, event.Kind, event.IDs); err != nil {
		ix.logger.Warn("admin index update failed",
			zap.String("class", event.ClassName),
			zap.String("kind", event.Kind),
			zap.Strings("ids", event.IDs),
			zap.Error(err))
	}
}

// IndexNotifier applies events to an Index synchronously. One-shot commands
// use it where no hub is running.
type IndexNotifier struct {
	Index Index
}

func (n IndexNotifier) Notify(ctx context.Context, event domain.RecordCreated) error {
	return n.Index.Add(ctx, event.ClassName, event.Kind, event.IDs)
}
