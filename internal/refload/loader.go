package refload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/paflow/internal/db"
	"github.com/gyeh/paflow/internal/model"
	embedsql "github.com/gyeh/paflow/internal/sql"
)

const readBatchSize = 1024

// Result holds metrics from a provider reference load.
type Result struct {
	RowsRead   int64
	RowsLoaded int64
	Duration   time.Duration
}

// LoadProviders streams provider rows from a Parquet file into the
// providers table via a channel-backed CopyFromSource. With replace set,
// existing provider rows are deleted first inside the same transaction so
// concurrent rule evaluations never observe a half-empty table.
func LoadProviders(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, path string, replace bool) (*Result, error) {
	start := time.Now()

	reader, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer reader.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if replace {
		tag, err := tx.Exec(ctx, embedsql.DeleteProviders)
		if err != nil {
			return nil, fmt.Errorf("delete existing providers: %w", err)
		}
		log.Info().Int64("rows_deleted", tag.RowsAffected()).Msg("existing providers cleared")
	}

	ch := make(chan *model.ProviderRefRow, readBatchSize)
	errCh := make(chan error, 1)

	var rowsRead int64

	go func() {
		defer close(ch)
		buf := make([]model.ProviderRefRow, readBatchSize)
		for {
			n, readErr := reader.Read(buf)
			for i := 0; i < n; i++ {
				rowsRead++
				row := buf[i]
				select {
				case ch <- &row:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				errCh <- fmt.Errorf("read providers at row %d: %w", rowsRead, readErr)
				return
			}
		}
		errCh <- nil
	}()

	source := db.NewChannelSource(ch)
	rowsLoaded, copyErr := tx.CopyFrom(ctx,
		pgx.Identifier{"providers"},
		model.ProviderColumns(),
		source,
	)

	prodErr := <-errCh
	if prodErr != nil {
		return nil, fmt.Errorf("provider load producer: %w", prodErr)
	}
	if copyErr != nil {
		return nil, fmt.Errorf("provider load copy: %w", copyErr)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit provider load: %w", err)
	}

	dur := time.Since(start)
	log.Info().
		Int64("rows_read", rowsRead).
		Int64("rows_loaded", rowsLoaded).
		Str("duration", dur.String()).
		Msg("provider reference load complete")

	return &Result{RowsRead: rowsRead, RowsLoaded: rowsLoaded, Duration: dur}, nil
}
