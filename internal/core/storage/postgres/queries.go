package postgres

// SQL statements prepared by the adapter at startup.
//
// event_log is append-only: log_position is a BIGSERIAL assigned by the
// database, which gives the single-partition log its strict total order.
// consumer_cursor is a single-row table (id is fixed to TRUE) holding the
// last committed log_position.
const (
	queryAppendEvent = `
		INSERT INTO event_log (id, name, properties, submitted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING log_position
	`

	queryReadAfter = `
		SELECT log_position, id, name, properties, submitted_at
		FROM event_log
		WHERE log_position > $1
		ORDER BY log_position ASC
		LIMIT $2
	`

	queryLoadCursor = `
		SELECT position FROM consumer_cursor WHERE id = TRUE
	`

	queryCommitCursor = `
		INSERT INTO consumer_cursor (id, position, committed_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position, committed_at = EXCLUDED.committed_at
	`
)
