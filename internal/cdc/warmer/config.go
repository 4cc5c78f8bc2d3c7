package warmer

// TableConfig names a table to warm and its primary-key column.
type TableConfig struct {
	Table      string
	PrimaryKey string
}

// Config configures the Cache Warmer.
type Config struct {
	// ConnectionURL is a standard (non-replication) PostgreSQL connection.
	ConnectionURL string

	// Tables lists every table to warm, in the order they are warmed.
	Tables []TableConfig
}
