// Package store is the sqlite-backed relationship record store. It serves
// rowid-range partitions to scanners and resolves property references for
// the property reader.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/property"
	"graphloader/internal/engine/scan"
	"graphloader/internal/shared/util"

	"github.com/gobwas/glob"
	_ "modernc.org/sqlite"
)

const (
	driverName      = "sqlite"
	lookupChunkSize = 500
	metaNodeCount   = "node_count"
)

type Options struct {
	Path string
	// RelationshipTypes are glob patterns; a record is scanned when its type
	// matches any of them. Empty means every type.
	RelationshipTypes []string
	BusyTimeout       time.Duration
}

type Store struct {
	path  string
	db    *sql.DB
	types []glob.Glob

	mu      sync.Mutex
	claimed map[int]bool
}

var (
	_ scan.RecordStore = (*Store)(nil)
	_ property.Store   = (*Store)(nil)
)

func Open(opts Options) (*Store, error) {
	cleanPath, ok := util.CleanFilePath(opts.Path)
	if !ok {
		return nil, errors.AddContext(
			errors.New(errors.CodeConfiguration, "store path must name a file"), errors.CtxPath, opts.Path)
	}
	if err := util.EnsureParentDir(cleanPath); err != nil {
		return nil, fmt.Errorf("create store directory for %q: %w", cleanPath, err)
	}

	types := make([]glob.Glob, 0, len(opts.RelationshipTypes))
	for _, pattern := range opts.RelationshipTypes {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid relationship type pattern %q", pattern))
		}
		types = append(types, g)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busy.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	// scanners read in parallel; WAL lets them proceed next to a writer
	db.SetMaxOpenConns(max(4, runtime.NumCPU()))
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db, types: types}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// NodeCount returns the recorded node count, or one past the largest
// endpoint when none was recorded.
func (s *Store) NodeCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM graph_meta WHERE key = ?`, metaNodeCount).Scan(&n)
	if err == nil {
		return n, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("read node count: %w", err)
	}
	var highest sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(CASE WHEN source > target THEN source ELSE target END) FROM relationships`,
	).Scan(&highest); err != nil {
		return 0, fmt.Errorf("derive node count: %w", err)
	}
	if !highest.Valid {
		return 0, nil
	}
	return highest.Int64 + 1, nil
}

func (s *Store) SetNodeCount(ctx context.Context, n int64) error {
	if n < 0 {
		return errors.Newf(errors.CodeValidationError, "node count must not be negative, got %d", n)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_meta(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaNodeCount, n)
	if err != nil {
		return fmt.Errorf("write node count: %w", err)
	}
	return nil
}

// RelationshipCount counts stored records regardless of the type filter.
func (s *Store) RelationshipCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count relationships: %w", err)
	}
	return n, nil
}

// Partitions splits the rowid range into at most n ranges. Each partition
// may be claimed by one scanner per call to Partitions.
func (s *Store) Partitions(ctx context.Context, n int) ([]scan.Partition, error) {
	if n <= 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "partition count must be positive, got %d", n)
	}
	var lo, hi sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(id), MAX(id) FROM relationships`).Scan(&lo, &hi); err != nil {
		return nil, fmt.Errorf("read rowid range: %w", err)
	}
	s.mu.Lock()
	s.claimed = make(map[int]bool, n)
	s.mu.Unlock()
	if !lo.Valid {
		return nil, nil
	}
	return scan.SplitRange(lo.Int64, hi.Int64+1, n), nil
}

func (s *Store) Scanner(p scan.Partition) (scan.Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed == nil {
		s.claimed = make(map[int]bool)
	}
	if s.claimed[p.Index] {
		return nil, errors.AddContext(
			errors.New(errors.CodeScan, "partition already claimed"), errors.CtxPartition, p.Index)
	}
	s.claimed[p.Index] = true
	return &rowScanner{store: s, part: p, next: p.Start}, nil
}

func (s *Store) matchesType(t string) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, g := range s.types {
		if g.Match(t) {
			return true
		}
	}
	return false
}

// PropertyKeyID returns the id of the named key, or property.NoSuchKey.
func (s *Store) PropertyKeyID(ctx context.Context, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT id FROM property_keys WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return property.NoSuchKey, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read property key %q: %w", name, err)
	}
	return id, nil
}

// ResolveKeys fills in the store id of every key spec by name.
func (s *Store) ResolveKeys(ctx context.Context, specs []property.KeySpec) ([]property.KeySpec, error) {
	out := make([]property.KeySpec, len(specs))
	for i, spec := range specs {
		id, err := s.PropertyKeyID(ctx, spec.Name)
		if err != nil {
			return nil, err
		}
		spec.ID = id
		out[i] = spec
	}
	return out, nil
}

// Lookup returns the values of keyIDs for every known ref. Refs without any
// stored value still appear with an empty map.
func (s *Store) Lookup(refs []int64, keyIDs []int) (map[int64]map[int]float64, error) {
	wanted := make(map[int]bool, len(keyIDs))
	for _, id := range keyIDs {
		wanted[id] = true
	}
	out := make(map[int64]map[int]float64, len(refs))
	for start := 0; start < len(refs); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(refs))
		if err := s.lookupChunk(refs[start:end], wanted, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) lookupChunk(refs []int64, wanted map[int]bool, out map[int64]map[int]float64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(refs)), ",")
	args := make([]any, len(refs))
	for i, ref := range refs {
		args[i] = ref
	}
	rows, err := s.db.Query(`
SELECT r.ref, p.key_id, p.value
FROM property_records r
LEFT JOIN relationship_properties p ON p.ref = r.ref
WHERE r.ref IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("lookup property records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref   int64
			keyID sql.NullInt64
			value sql.NullFloat64
		)
		if err := rows.Scan(&ref, &keyID, &value); err != nil {
			return fmt.Errorf("scan property row: %w", err)
		}
		record, ok := out[ref]
		if !ok {
			record = make(map[int]float64)
			out[ref] = record
		}
		if keyID.Valid && value.Valid && wanted[int(keyID.Int64)] {
			record[int(keyID.Int64)] = value.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate property rows: %w", err)
	}
	return nil
}
