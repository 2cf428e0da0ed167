// Package oracle implements the Oracle source driver on top of godror.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/godror/godror"
	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Driver implements driver.Source for Oracle Database.
type Driver struct{}

func init() {
	driver.Register(&Driver{})
}

func (d *Driver) Name() string { return "oracle" }

func (d *Driver) Aliases() []string { return []string{"ora", "oracledb"} }

func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 1521}
}

func (d *Driver) Dialect() driver.Dialect { return &Dialect{} }

func (d *Driver) TypeMapper() driver.TypeMapper { return &TypeMapper{} }

func (d *Driver) NewInspector(db *sql.DB) driver.Inspector {
	return &Inspector{db: db, dialect: &Dialect{}}
}

// Open opens a pooled godror handle. Thick mode appends the client library
// directory to the DSN; thin mode (the default) needs no installed client.
func (d *Driver) Open(ctx context.Context, dsn string, cfg driver.Config) (*sql.DB, error) {
	mode := ResolveClientMode(cfg)
	if mode == "thick" && cfg.LibDir != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "libDir=" + cfg.LibDir
	}

	db, err := sql.Open("godror", dsn)
	if err != nil {
		return nil, syncerr.Connectivity("", "open", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(maxIdle(cfg.MaxOpenConns))

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, syncerr.Connectivity("", "ping", fmt.Errorf("oracle ping: %w", err))
	}
	return db, nil
}

// ResolveClientMode collapses Config.ClientMode to "thin" or "thick".
// "auto" resolves to thick only when a client library directory is
// configured; there is no hidden probe and no process-global cache, so the
// decision is reproducible from the Config alone.
func ResolveClientMode(cfg driver.Config) string {
	switch strings.ToLower(cfg.ClientMode) {
	case "thick":
		return "thick"
	case "thin", "":
		return "thin"
	case "auto":
		if cfg.LibDir != "" {
			return "thick"
		}
		return "thin"
	default:
		return "thin"
	}
}

func maxIdle(maxOpen int) int {
	idle := maxOpen / 4
	if idle < 1 {
		idle = 1
	}
	return idle
}

// NormalizeRow converts godror-specific scan values into the plain Go
// values the destination writer expects. godror surfaces every NUMBER as a
// godror.Number string; integers and floats are parsed back while
// decimal(38,0) stays textual so 20-digit keys keep full precision.
func (d *Driver) NormalizeRow(row []any, types []driver.ColumnType) {
	for i, v := range row {
		num, ok := v.(godror.Number)
		if !ok {
			continue
		}
		s := string(num)
		if i >= len(types) {
			row[i] = s
			continue
		}
		switch types[i].Kind {
		case driver.TypeInt16, driver.TypeInt32, driver.TypeInt64:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				row[i] = n
			} else {
				row[i] = s
			}
		case driver.TypeFloat32, driver.TypeFloat64:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				row[i] = f
			} else {
				row[i] = s
			}
		default:
			// Decimals and anything else ride through as text; DuckDB
			// casts on insert without losing digits.
			row[i] = s
		}
	}
}
