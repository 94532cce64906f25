package questdb

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
)

// rowWriter delivers rows to the database.
type rowWriter interface {
	Write(ctx context.Context, rows []*Row) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

var _ rowWriter = (*senderWriter)(nil)

// senderWriter writes rows through an ILP over HTTP line sender.
type senderWriter struct {
	pool   *qdb.LineSenderPool
	sender qdb.LineSender
}

func openSenderWriter(ctx context.Context, cfg *Config) (rowWriter, error) {
	pool, err := qdb.PoolFromOptions(
		qdb.WithAddress(cfg.Address),
		qdb.WithHttp(),
		qdb.WithAutoFlushRows(cfg.AutoFlushRows),
		qdb.WithRetryTimeout(cfg.RetryTimeout),
	)
	if err != nil {
		return nil, err
	}

	sender, err := pool.Sender(ctx)
	if err != nil {
		pool.Close(ctx)
		return nil, err
	}

	return &senderWriter{
		pool:   pool,
		sender: sender,
	}, nil
}

func (w *senderWriter) Write(ctx context.Context, rows []*Row) error {
	for _, row := range rows {
		query := w.sender.Table(row.Table)

		for _, symbol := range row.Symbols {
			query.Symbol(symbol.Name, symbol.Value)
		}

		for _, col := range row.Columns {
			switch col.Type {
			case ColumnTypeBool:
				query.BoolColumn(col.Name, col.Value.(bool))
			case ColumnTypeInt:
				query.Int64Column(col.Name, col.Value.(int64))
			case ColumnTypeFloat:
				query.Float64Column(col.Name, col.Value.(float64))
			case ColumnTypeString:
				query.StringColumn(col.Name, col.Value.(string))
			case ColumnTypeTimestamp:
				query.TimestampColumn(col.Name, col.Value.(time.Time))
			default:
				return fmt.Errorf("unknown column type %d for %s", col.Type, col.Name)
			}
		}

		if err := query.At(ctx, row.Timestamp); err != nil {
			return err
		}
	}

	return nil
}

func (w *senderWriter) Flush(ctx context.Context) error {
	return w.sender.Flush(ctx)
}

func (w *senderWriter) Close(ctx context.Context) error {
	if err := w.sender.Close(ctx); err != nil {
		w.pool.Close(ctx)
		return err
	}

	return w.pool.Close(ctx)
}
