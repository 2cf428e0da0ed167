// Package mssql implements the SQL Server source driver on top of
// go-mssqldb. It registers itself with the driver registry on import.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Driver implements driver.Source for SQL Server.
type Driver struct{}

func init() {
	driver.Register(&Driver{})
}

func (d *Driver) Name() string { return "mssql" }

func (d *Driver) Aliases() []string { return []string{"sqlserver"} }

func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 1433, Schema: "dbo"}
}

func (d *Driver) Dialect() driver.Dialect { return &Dialect{} }

func (d *Driver) TypeMapper() driver.TypeMapper { return &TypeMapper{} }

func (d *Driver) NewInspector(db *sql.DB) driver.Inspector {
	return &Inspector{db: db, dialect: &Dialect{}}
}

func (d *Driver) Open(ctx context.Context, dsn string, cfg driver.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", dsn)
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
		return nil, syncerr.Connectivity("", "ping", fmt.Errorf("mssql ping: %w", err))
	}
	return db, nil
}

func maxIdle(maxOpen int) int {
	idle := maxOpen / 4
	if idle < 1 {
		idle = 1
	}
	return idle
}
