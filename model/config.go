package model

type DBType string

const (
	DBTypeDuckDB DBType = "duckdb"
	DBTypeSQLite DBType = "sqlite"
)

type DBConfig struct {
	Type DBType
	DSN  string
}
