package hierarchy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/repository"
)

var (
	writeTx = repository.TxOptions{}
	readTx  = repository.TxOptions{ReadOnly: true}
)

// transactor runs units of work in a store transaction and retries the
// ones the store aborted.
type transactor struct {
	repo   repository.Repository
	cfg    config.EngineConfig
	logger *slog.Logger
}

// withTx runs fn in a transaction, retrying ErrTransactionAborted up to
// cfg.MaxRetries times. fn must not keep state across attempts.
func (t *transactor) withTx(ctx context.Context, op string, opts repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := t.runTx(ctx, opts, fn)
		if err == nil || !errors.Is(err, ErrTransactionAborted) || attempt >= t.cfg.MaxRetries || ctx.Err() != nil {
			return err
		}

		backoff := t.cfg.RetryBackoff * time.Duration(attempt+1)
		t.logger.WarnContext(ctx, "retrying aborted transaction",
			"op", op, "attempt", attempt+1, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// runTx is a single attempt: begin, fn, commit. Any failure rolls back.
func (t *transactor) runTx(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if t.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.TxTimeout)
		defer cancel()
	}

	tx, err := t.repo.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}
