// Package selector builds the connector a request runs against.
//
// A database with a SQL mapping in the configuration gets the SQL
// connector; every other database goes to the configured proprietary
// backend. The connector is request-scoped and must be closed by the
// caller.
package selector

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/backend/dataapi"
	"github.com/roach88/restgate/internal/backend/legacy"
	"github.com/roach88/restgate/internal/backend/sqldb"
	"github.com/roach88/restgate/internal/config"
	"github.com/roach88/restgate/internal/logger"
)

// BackendNone disables the proprietary backends.
const BackendNone = "none"

// Options tune the connectors Select builds.
type Options struct {
	// HTTPClient replaces the HTTP client of the legacy and data API
	// connectors.
	HTTPClient *http.Client
}

// Select returns a connector for database.
func Select(creds backend.Credentials, database string, cfg *config.Config, opts Options) (backend.Connector, error) {
	if cfg == nil {
		return nil, backend.NewConfigError("no configuration", nil)
	}
	log := logger.For(logger.ComponentSelector)

	if m, ok := cfg.SQLMappingFor(database); ok {
		log.Debugw("selected sql connector", "db", database, "driver", m.Driver)
		conn, err := sqldb.New(database, sqldb.Options{
			Driver:    m.Driver,
			DSN:       m.DSN,
			IDColumn:  m.IDColumn,
			Scripts:   m.Scripts,
			Databases: sqlDatabases(cfg),
			Logger:    logger.For(logger.ComponentSQL),
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	switch cfg.Backend {
	case backend.KindLegacy:
		log.Debugw("selected legacy connector", "db", database)
		conn, err := legacy.New(database, creds, legacy.Options{
			URL:        cfg.Legacy.URL,
			Timeout:    cfg.Legacy.Timeout,
			HTTPClient: opts.HTTPClient,
			Logger:     logger.For(logger.ComponentLegacy),
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	case backend.KindDataAPI:
		log.Debugw("selected data api connector", "db", database)
		conn, err := dataapi.New(database, creds, dataapi.Options{
			URL:          cfg.DataAPI.URL,
			Version:      cfg.DataAPI.Version,
			Timeout:      cfg.DataAPI.Timeout,
			LoginRetries: cfg.DataAPI.LoginRetries,
			HTTPClient:   opts.HTTPClient,
			Logger:       logger.For(logger.ComponentDataAPI),
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	case BackendNone:
		return nil, backend.NewConfigError(fmt.Sprintf("database %s has no sql mapping and no backend is enabled", database), nil)
	}
	return nil, backend.NewConfigError(fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
}

// sqlDatabases lists the configured SQL database names.
func sqlDatabases(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.SQL))
	for name := range cfg.SQL {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
