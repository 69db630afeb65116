package database

import (
	"fmt"

	"github.com/jing2uo/quantlab/database/duckdb"
	"github.com/jing2uo/quantlab/database/sqlite"
	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
)

func NewQueryEngine(cfg model.DBConfig, log zerolog.Logger) (QueryEngine, error) {
	switch cfg.Type {
	case model.DBTypeDuckDB:
		return duckdb.NewDriver(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported query engine: %s", cfg.Type)
	}
}

func NewMetaRepository(cfg model.DBConfig) (MetaRepository, error) {
	switch cfg.Type {
	case model.DBTypeSQLite:
		return sqlite.NewDriver(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported metadata db: %s", cfg.Type)
	}
}
