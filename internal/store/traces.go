package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/vcdtrace/internal/script"
)

// ErrTraceNotFound is returned when no trace has the requested id.
var ErrTraceNotFound = errors.New("trace not found")

// TraceInfo summarizes a stored trace.
type TraceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Signals     int    `json:"signals"`
	Steps       int    `json:"steps"`
}

// SaveScript validates s and stores it under a freshly generated id.
// The whole script is written in one transaction.
//
// SQLite integers are signed, so timestamps above math.MaxInt64 are rejected.
func (s *Store) SaveScript(ctx context.Context, sc *script.Script) (string, error) {
	if err := sc.Validate(); err != nil {
		return "", fmt.Errorf("save script: %w", err)
	}
	if err := checkRange(sc); err != nil {
		return "", fmt.Errorf("save script: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save script: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM traces`).Scan(&seq); err != nil {
		return "", fmt.Errorf("save script: next seq: %w", err)
	}

	id := s.ids.Generate()
	var dumping, end sql.NullInt64
	if sc.Options.Dumping != nil {
		dumping = sql.NullInt64{Int64: boolInt(*sc.Options.Dumping), Valid: true}
	}
	if sc.End != nil {
		end = sql.NullInt64{Int64: int64(*sc.End), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces
		(id, seq, name, description, timescale, date, comment, version,
		 init_timestamp, separator, scope_type, dumping, end_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, seq, sc.Name, sc.Description,
		sc.Header.Timescale, sc.Header.Date, sc.Header.Comment, sc.Header.Version,
		int64(sc.Options.InitTimestamp), sc.Options.Separator, sc.Options.ScopeType,
		dumping, end,
	)
	if err != nil {
		return "", fmt.Errorf("save script: insert trace: %w", err)
	}

	for i, decl := range sc.Scopes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scopes (trace_id, seq, path, type) VALUES (?, ?, ?, ?)`,
			id, i, decl.Path, decl.Type,
		); err != nil {
			return "", fmt.Errorf("save script: insert scopes[%d]: %w", i, err)
		}
	}

	for i, sig := range sc.Signals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signals (trace_id, seq, scope, name, type, size, init, allow_duplicate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, sig.Scope, sig.Name, sig.Type, int64(sig.Size), sig.Init, boolInt(sig.AllowDuplicate),
		); err != nil {
			return "", fmt.Errorf("save script: insert signals[%d]: %w", i, err)
		}
	}

	for i, step := range sc.Steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO steps (trace_id, seq, at, scope, name, value, dump)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, int64(step.At), step.Scope, step.Name, step.Value, step.Dump,
		); err != nil {
			return "", fmt.Errorf("save script: insert steps[%d]: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save script: commit: %w", err)
	}
	return id, nil
}

// LoadScript rebuilds the script stored under id.
// Returns ErrTraceNotFound if there is none.
func (s *Store) LoadScript(ctx context.Context, id string) (*script.Script, error) {
	sc := &script.Script{}
	var (
		initTS       int64
		dumping, end sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, timescale, date, comment, version,
		       init_timestamp, separator, scope_type, dumping, end_ts
		FROM traces
		WHERE id = ?
	`, id).Scan(
		&sc.Name, &sc.Description,
		&sc.Header.Timescale, &sc.Header.Date, &sc.Header.Comment, &sc.Header.Version,
		&initTS, &sc.Options.Separator, &sc.Options.ScopeType, &dumping, &end,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load script %s: %w", id, ErrTraceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", id, err)
	}

	sc.Options.InitTimestamp = uint64(initTS)
	if dumping.Valid {
		on := dumping.Int64 != 0
		sc.Options.Dumping = &on
	}
	if end.Valid {
		e := uint64(end.Int64)
		sc.End = &e
	}

	if sc.Scopes, err = s.readScopes(ctx, id); err != nil {
		return nil, err
	}
	if sc.Signals, err = s.readSignals(ctx, id); err != nil {
		return nil, err
	}
	if sc.Steps, err = s.readSteps(ctx, id); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Store) readScopes(ctx context.Context, id string) ([]script.ScopeDecl, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, type FROM scopes WHERE trace_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	var scopes []script.ScopeDecl
	for rows.Next() {
		var d script.ScopeDecl
		if err := rows.Scan(&d.Path, &d.Type); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

func (s *Store) readSignals(ctx context.Context, id string) ([]script.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, name, type, size, init, allow_duplicate
		FROM signals
		WHERE trace_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []script.Signal
	for rows.Next() {
		var (
			sig  script.Signal
			size int64
			dup  int64
		)
		if err := rows.Scan(&sig.Scope, &sig.Name, &sig.Type, &size, &sig.Init, &dup); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Size = uint(size)
		sig.AllowDuplicate = dup != 0
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

func (s *Store) readSteps(ctx context.Context, id string) ([]script.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT at, scope, name, value, dump
		FROM steps
		WHERE trace_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []script.Step
	for rows.Next() {
		var (
			step script.Step
			at   int64
		)
		if err := rows.Scan(&at, &step.Scope, &step.Name, &step.Value, &step.Dump); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.At = uint64(at)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// ListTraces returns a summary of every stored trace in insertion order.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListTraces(ctx context.Context) ([]TraceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description,
		       (SELECT COUNT(*) FROM signals g WHERE g.trace_id = t.id),
		       (SELECT COUNT(*) FROM steps p WHERE p.trace_id = t.id)
		FROM traces t
		ORDER BY t.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	traces := []TraceInfo{}
	for rows.Next() {
		var info TraceInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Description, &info.Signals, &info.Steps); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		traces = append(traces, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return traces, nil
}

// DeleteTrace removes a trace and, through ON DELETE CASCADE, its rows.
// Returns ErrTraceNotFound if there is none.
func (s *Store) DeleteTrace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trace %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trace %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete trace %s: %w", id, ErrTraceNotFound)
	}
	return nil
}

func checkRange(sc *script.Script) error {
	if sc.Options.InitTimestamp > math.MaxInt64 {
		return fmt.Errorf("options.init_timestamp %d exceeds %d", sc.Options.InitTimestamp, int64(math.MaxInt64))
	}
	if sc.End != nil && *sc.End > math.MaxInt64 {
		return fmt.Errorf("end %d exceeds %d", *sc.End, int64(math.MaxInt64))
	}
	for i, step := range sc.Steps {
		if step.At > math.MaxInt64 {
			return fmt.Errorf("steps[%d]: timestamp %d exceeds %d", i, step.At, int64(math.MaxInt64))
		}
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
