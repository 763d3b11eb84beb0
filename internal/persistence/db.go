// Package persistence provides SQLite-based storage for simulation snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no saved snapshot")

// DB wraps a SQLite connection for simulation persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		destination_city_id TEXT NOT NULL,
		status TEXT NOT NULL,
		population_size INTEGER NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		flow_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_flows_destination ON flows(destination_city_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_flow ON outcomes(flow_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveFlows writes all flows to the database (full replace).
func (db *DB) SaveFlows(tx *sqlx.Tx, all []flows.Flow) error {
	if _, err := tx.Exec("DELETE FROM flows"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO flows
		(id, position, destination_city_id, status, population_size, data_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range all {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode flow %s: %w", f.ID, err)
		}
		if _, err := stmt.Exec(f.ID, i, f.DestinationCityID, f.Status, f.PopulationSize, string(data)); err != nil {
			return fmt.Errorf("insert flow %s: %w", f.ID, err)
		}
	}
	return nil
}

// SavePolicies writes all policies to the database (full replace).
func (db *DB) SavePolicies(tx *sqlx.Tx, all []policy.Policy) error {
	if _, err := tx.Exec("DELETE FROM policies"); err != nil {
		return err
	}

	for i, p := range all {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode policy %s: %w", p.ID, err)
		}
		_, err = tx.Exec(`INSERT INTO policies (id, position, name, status, data_json)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, i, p.Name, p.Status, string(data),
		)
		if err != nil {
			return fmt.Errorf("insert policy %s: %w", p.ID, err)
		}
	}
	return nil
}

// SaveOutcomes writes all integration outcomes to the database (full replace).
func (db *DB) SaveOutcomes(tx *sqlx.Tx, all []integration.Outcome) error {
	if _, err := tx.Exec("DELETE FROM outcomes"); err != nil {
		return err
	}

	for i, o := range all {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode outcome %s: %w", o.ID, err)
		}
		_, err = tx.Exec(`INSERT INTO outcomes (id, position, flow_id, stage, data_json)
			VALUES (?, ?, ?, ?, ?)`,
			o.ID, i, o.FlowID, o.Stage, string(data),
		)
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.ID, err)
		}
	}
	return nil
}

// SaveEvents replaces the stored event log with log, oldest first.
func (db *DB) SaveEvents(tx *sqlx.Tx, log []events.Event) error {
	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}

	for _, e := range log {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		_, err = tx.Exec(`INSERT INTO events (id, tick, type, severity, description, data_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Tick, e.Type, e.Severity, e.Description, string(data),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return nil
}

// SaveMeta stores a key-value pair in simulation metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(ex sqlx.Execer, key, value string) error {
	_, err := ex.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// SaveSnapshot performs a full save of snap in a single transaction.
func (db *DB) SaveSnapshot(snap engine.Snapshot) error {
	slog.Info("saving simulation state",
		"tick", snap.Tick,
		"flows", len(snap.Flows),
		"policies", len(snap.Policies),
		"events", len(snap.Events),
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := db.SaveFlows(tx, snap.Flows); err != nil {
		return fmt.Errorf("save flows: %w", err)
	}
	if err := db.SavePolicies(tx, snap.Policies); err != nil {
		return fmt.Errorf("save policies: %w", err)
	}
	if err := db.SaveOutcomes(tx, snap.Outcomes); err != nil {
		return fmt.Errorf("save outcomes: %w", err)
	}
	if err := db.SaveEvents(tx, snap.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	meta := map[string]string{
		"last_tick":  strconv.FormatUint(snap.Tick, 10),
		"start_time": snap.Start.Format(time.RFC3339Nano),
		"sim_time":   snap.Now.Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if err := saveMeta(tx, key, value); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("simulation state saved")
	return nil
}

// LoadSnapshot reads the last saved snapshot. It returns ErrNoSnapshot when
// the database is empty.
func (db *DB) LoadSnapshot() (engine.Snapshot, error) {
	var snap engine.Snapshot

	lastTick, err := db.GetMeta("last_tick")
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("load meta: %w", err)
	}
	if snap.Tick, err = strconv.ParseUint(lastTick, 10, 64); err != nil {
		return snap, fmt.Errorf("parse last_tick %q: %w", lastTick, err)
	}
	if snap.Start, err = db.metaTime("start_time"); err != nil {
		return snap, err
	}
	if snap.Now, err = db.metaTime("sim_time"); err != nil {
		return snap, err
	}

	if snap.Flows, err = loadRows[flows.Flow](db, "SELECT data_json FROM flows ORDER BY position"); err != nil {
		return snap, fmt.Errorf("load flows: %w", err)
	}
	if snap.Policies, err = loadRows[policy.Policy](db, "SELECT data_json FROM policies ORDER BY position"); err != nil {
		return snap, fmt.Errorf("load policies: %w", err)
	}
	if snap.Outcomes, err = loadRows[integration.Outcome](db, "SELECT data_json FROM outcomes ORDER BY position"); err != nil {
		return snap, fmt.Errorf("load outcomes: %w", err)
	}
	if snap.Events, err = loadRows[events.Event](db, "SELECT data_json FROM events ORDER BY seq"); err != nil {
		return snap, fmt.Errorf("load events: %w", err)
	}

	slog.Info("simulation state loaded", "tick", snap.Tick, "flows", len(snap.Flows), "events", len(snap.Events))
	return snap, nil
}

func (db *DB) metaTime(key string) (time.Time, error) {
	value, err := db.GetMeta(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("load meta %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse meta %s %q: %w", key, value, err)
	}
	return t, nil
}

// loadRows decodes the data_json column of every row query returns.
func loadRows[T any](db *DB, query string, args ...any) ([]T, error) {
	var blobs []string
	if err := db.conn.Select(&blobs, query, args...); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(blobs))
	for _, b := range blobs {
		var v T
		if err := json.Unmarshal([]byte(b), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RecentEvents returns the most recent N saved events, newest first.
func (db *DB) RecentEvents(limit int) ([]events.Event, error) {
	return loadRows[events.Event](db, "SELECT data_json FROM events ORDER BY seq DESC LIMIT ?", limit)
}

// EventsAtSeverity returns saved events with the given severity, newest first.
func (db *DB) EventsAtSeverity(severity events.Severity, limit int) ([]events.Event, error) {
	return loadRows[events.Event](db,
		"SELECT data_json FROM events WHERE severity = ? ORDER BY seq DESC LIMIT ?",
		severity, limit,
	)
}
