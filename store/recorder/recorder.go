// Package recorder reads state history and logbook lines straight from the
// Home Assistant recorder database (SQLite, schema 43 and later).
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

// significantFilter keeps state changes and drops attribute-only updates.
// Newer schemas store NULL in last_changed_ts when it equals last_updated_ts.
const significantFilter = `(s.last_changed_ts IS NULL OR s.last_changed_ts = s.last_updated_ts)`

// DefaultLogbookRows bounds the rows GetEvents reads. The builder applies the
// entity policy afterwards, so it reads more than it will keep.
const DefaultLogbookRows = hscontext.MaxLogbookEntries * 4

// Recorder is a read-only view of the recorder database.
type Recorder struct {
	db          *sql.DB
	logbookRows int
}

// Open opens the recorder database at path read-only.
func Open(path string) (*Recorder, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open recorder database %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to recorder database %s", path)
	}
	return New(db), nil
}

// New wraps an open recorder database.
func New(db *sql.DB) *Recorder {
	return &Recorder{db: db, logbookRows: DefaultLogbookRows}
}

// WithLogbookRows overrides the row bound of GetEvents. Non-positive values
// keep the default.
func (r *Recorder) WithLogbookRows(n int) *Recorder {
	if n > 0 {
		r.logbookRows = n
	}
	return r
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// GetSignificantStates returns the state changes per entity in [start, end),
// oldest first.
func (r *Recorder) GetSignificantStates(ctx context.Context, start, end time.Time) (map[string][]hscontext.StateChange, error) {
	query := `
		SELECT m.entity_id, s.state, COALESCE(s.last_changed_ts, s.last_updated_ts)
		FROM states s
		JOIN states_meta m ON m.metadata_id = s.metadata_id
		WHERE s.last_updated_ts >= ? AND s.last_updated_ts < ? AND ` + significantFilter + `
		ORDER BY m.entity_id, s.last_updated_ts`

	rows, err := r.db.QueryContext(ctx, query, toTimestamp(start), toTimestamp(end))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query state history")
	}
	defer rows.Close()

	result := make(map[string][]hscontext.StateChange)
	for rows.Next() {
		var (
			entityID string
			state    sql.NullString
			changed  float64
		)
		if err := rows.Scan(&entityID, &state, &changed); err != nil {
			return nil, errors.Wrap(err, "failed to scan state history")
		}
		result[entityID] = append(result[entityID], hscontext.StateChange{
			State:       state.String,
			LastChanged: fromTimestamp(changed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read state history")
	}
	return result, nil
}

// GetEvents derives logbook lines from the newest state changes in
// [start, end), newest first, reading at most the configured row bound. The name is the friendly_name attribute of the new state,
// falling back to the entity id.
func (r *Recorder) GetEvents(ctx context.Context, start, end time.Time) ([]*hscontext.LogbookEvent, error) {
	query := `
		SELECT m.entity_id, s.state, s.last_updated_ts,
			COALESCE(json_extract(a.shared_attrs, '$.friendly_name'), '')
		FROM states s
		JOIN states_meta m ON m.metadata_id = s.metadata_id
		LEFT JOIN state_attributes a ON a.attributes_id = s.attributes_id
		WHERE s.last_updated_ts >= ? AND s.last_updated_ts < ? AND ` + significantFilter + `
		ORDER BY s.last_updated_ts DESC, m.entity_id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, toTimestamp(start), toTimestamp(end), r.logbookRows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query logbook")
	}
	defer rows.Close()

	var events []*hscontext.LogbookEvent
	for rows.Next() {
		var (
			entityID string
			state    sql.NullString
			updated  float64
			name     string
		)
		if err := rows.Scan(&entityID, &state, &updated, &name); err != nil {
			return nil, errors.Wrap(err, "failed to scan logbook")
		}
		if name == "" {
			name = entityID
		}
		events = append(events, &hscontext.LogbookEvent{
			When:     fromTimestamp(updated),
			Name:     name,
			Message:  "changed to " + state.String,
			EntityID: entityID,
			Domain:   hscontext.DomainOf(entityID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read logbook")
	}
	return events, nil
}

func toTimestamp(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromTimestamp(ts float64) time.Time {
	return time.UnixMicro(int64(math.Round(ts * 1e6))).UTC()
}

var (
	_ hscontext.HistorySource = (*Recorder)(nil)
	_ hscontext.LogbookSource = (*Recorder)(nil)
)
