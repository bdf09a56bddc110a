package storage

import (
	"context"
	"fmt"

	"qad/internal/config"
)

// Open returns the Store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverJSON:
		return NewJSONStore(cfg.GetStorePath())
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.GetStorePath())
	case config.DriverMySQL:
		m := cfg.Store.MySQL
		return OpenMySQL(ctx, MySQLOptions{
			Host:     m.Host,
			Port:     m.Port,
			User:     m.User,
			Password: m.Password,
			Database: m.Database,
			DSN:      m.DSN,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
