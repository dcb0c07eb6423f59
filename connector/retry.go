package connector

import (
	"context"
	"time"

	"github.com/doctorgu/querybank/database"
)

// retryDial attempts a dial up to cfg.MaxRetries+1 times with exponential
// backoff. Execution errors are never retried anywhere in this module;
// this applies to connection establishment only.
func retryDial(ctx context.Context, cfg *RetryConfig, dialer database.Dialer) (database.Conn, error) {
	delay := cfg.BaseDelay.Std()
	if delay == 0 {
		delay = time.Second
	}

	conn, err := dialer.Dial(ctx)
	if err == nil {
		return conn, nil
	}

	for i := 0; i < cfg.MaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay.Std() {
				delay = cfg.MaxDelay.Std()
			}
		}

		conn, err = dialer.Dial(ctx)
		if err == nil {
			return conn, nil
		}
	}
	return nil, err
}
