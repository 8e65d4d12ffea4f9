package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thrillee/bulksms/internal/logging"
)

// WorkerFunc defines the function signature for work performed by a worker loop.
// It returns the number of items processed and any critical error encountered.
type WorkerFunc func(ctx context.Context, batchSize int) (int, error)

// runWorkerLoop runs workerFunc every interval until ctx is done.
func runWorkerLoop(ctx context.Context, name string, interval, timeout time.Duration, batchSize int, workerFunc WorkerFunc) {
	logCtx := logging.ContextWithWorkerID(ctx, name)
	slog.InfoContext(logCtx, "Worker starting", slog.Duration("interval", interval), slog.Int("batch_size", batchSize))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(logCtx, "Worker stopping")
			return
		case <-ticker.C:
			runWork(logCtx, timeout, batchSize, workerFunc)
		}
	}
}

// runWork executes a single batch of work with a timeout.
func runWork(ctx context.Context, timeout time.Duration, batchSize int, workerFunc WorkerFunc) (processed int, err error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "PANIC recovered in worker run", slog.Any("panic_info", r))
			err = fmt.Errorf("panic in worker run: %v", r)
		}
	}()

	processed, err = workerFunc(runCtx, batchSize)
	switch {
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		slog.ErrorContext(ctx, "Error in worker run", slog.Any("error", err))
	case processed > 0:
		slog.InfoContext(ctx, "Worker run processed items", slog.Int("count", processed))
	}
	return processed, err
}
