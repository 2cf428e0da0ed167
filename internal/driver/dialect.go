package driver

// Dialect abstracts engine-specific SQL syntax. Query builders interpolate
// only identifiers that have been validated against catalog metadata; all
// values travel as bind parameters through the matching Args builder.
type Dialect interface {
	// DBType returns the engine name (e.g., "oracle").
	DBType() string

	// QuoteIdentifier quotes a table or column identifier.
	QuoteIdentifier(name string) string

	// QualifyTable returns a fully qualified, quoted table reference.
	QualifyTable(schema, table string) string

	// ColumnList formats a quoted, comma-separated SELECT list.
	ColumnList(cols []string) string

	// BuildDSN builds a connection string for this engine.
	BuildDSN(host string, port int, database, user, password string, opts map[string]any) string

	// KeysetQuery builds the sequential-incremental page query:
	// rows with rangeCol beyond the watermark, ordered, limited to one
	// batch. inclusive selects >= (first-ever sync, watermark absent)
	// instead of strict > (every resumption).
	KeysetQuery(cols, rangeCol, schema, table string, inclusive bool) string

	// KeysetArgs builds the bind arguments for KeysetQuery.
	KeysetArgs(watermark any, limit int) []any

	// ChunkQuery builds the bounded-range query one parallel worker runs
	// per chunk: rangeCol > start AND rangeCol <= end, ordered by rangeCol.
	ChunkQuery(cols, rangeCol, schema, table string) string

	// ChunkArgs builds the bind arguments for ChunkQuery.
	ChunkArgs(start, end any) []any

	// BoundaryQuery builds the order-statistics sampling query used by the
	// chunk planner: the value of rangeCol at every step-th position in
	// sorted order, via a windowed rank.
	BoundaryQuery(rangeCol, schema, table string) string

	// BoundaryArgs builds the bind arguments for BoundaryQuery.
	BoundaryArgs(step int64) []any

	// MinMaxQuery builds the query returning MIN and MAX of rangeCol.
	MinMaxQuery(rangeCol, schema, table string) string

	// CountQuery builds an exact COUNT(*) query.
	CountQuery(schema, table string) string

	// PartitionRef returns a FROM-clause reference that restricts the scan
	// to one physical partition, or the plain qualified table when the
	// engine addresses partitions as separate tables.
	PartitionRef(schema, table, partition string) string

	// PartitionCountQuery builds a COUNT(*) query scoped to one partition.
	PartitionCountQuery(schema, table, partition string) string
}
