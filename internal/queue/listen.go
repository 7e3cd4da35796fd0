package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"thirdcoast.systems/fetchd/internal/db"
)

const listenRetryDelay = 2 * time.Second

// listenAndSignal holds a dedicated connection LISTENing on channel and does a
// non-blocking send on signalCh for every notification. It reconnects until ctx ends.
func listenAndSignal(ctx context.Context, dsn string, channel string, signalCh chan<- struct{}, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		// Parse using pgxpool so pool_* DSN params are consumed client-side.
		poolConf, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("listen parse config failed", "channel", channel, "error", err)
			sleepCtx(ctx, listenRetryDelay)
			continue
		}

		conn, err := pgx.ConnectConfig(ctx, poolConf.ConnConfig)
		if err != nil {
			logger.Error("listen connect failed", "channel", channel, "error", err)
			sleepCtx(ctx, listenRetryDelay)
			continue
		}

		q := db.New(conn)
		switch channel {
		case channelJobs:
			err = q.ListenQueueJobs(ctx)
		case channelRevocations:
			err = q.ListenQueueRevocations(ctx)
		default:
			err = fmt.Errorf("unsupported listen channel: %s", channel)
		}
		if err != nil {
			logger.Error("LISTEN failed", "channel", channel, "error", err)
			_ = conn.Close(context.WithoutCancel(ctx))
			sleepCtx(ctx, listenRetryDelay)
			continue
		}

		for {
			if _, err := conn.WaitForNotification(ctx); err != nil {
				_ = conn.Close(context.WithoutCancel(ctx))
				if ctx.Err() != nil {
					return
				}
				logger.Error("wait for notification failed", "channel", channel, "error", err)
				break
			}

			select {
			case signalCh <- struct{}{}:
			default:
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
