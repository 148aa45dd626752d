package sqlgateway

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/denismitr/kvtern/internal/retry"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 10
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

type Connector interface {
	Connect(ctx context.Context) (*sqlx.DB, error)
	Close() error
}

// RetryingConnector pings the database until it answers or the
// attempts run out, the verified handle is reused afterwards
type RetryingConnector struct {
	mu        sync.Mutex
	options   *ConnectOptions
	db        *sqlx.DB
	connected bool
}

var _ Connector = (*RetryingConnector)(nil)

func MakeRetryingConnector(db *sql.DB, driverName string, options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{db: sqlx.NewDb(db, driverName), options: options}
}

func (c *RetryingConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return c.db, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.options.MaxTimeout)
	defer cancel()

	err := retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) error {
		if err := c.db.PingContext(ctx); err != nil {
			return retry.Error(errors.Wrap(err, "db ping failed"), attempt)
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not establish DB connection")
	}

	c.connected = true

	return c.db, nil
}

// Close does not close the database, it belongs to the caller
func (c *RetryingConnector) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}
