package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sort"

	"graphloader/internal/engine/batch"
)

// Relationship is one record to insert.
type Relationship struct {
	Source     int64
	Target     int64
	Type       string
	Properties map[string]float64
}

// AddRelationships inserts rels in one transaction and returns their ids.
// Property keys are created on first use.
func (s *Store) AddRelationships(ctx context.Context, rels []Relationship) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keyIDs := make(map[string]int64)
	ids := make([]int64, len(rels))
	for i, rel := range rels {
		ref := int64(batch.NoPropertyRef)
		if len(rel.Properties) > 0 {
			res, err := tx.ExecContext(ctx, `INSERT INTO property_records DEFAULT VALUES`)
			if err != nil {
				return nil, fmt.Errorf("insert property record: %w", err)
			}
			if ref, err = res.LastInsertId(); err != nil {
				return nil, err
			}
			// stable key order keeps key ids deterministic for seeded stores
			names := make([]string, 0, len(rel.Properties))
			for name := range rel.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				keyID, err := ensureKey(ctx, tx, keyIDs, name)
				if err != nil {
					return nil, err
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO relationship_properties(ref, key_id, value) VALUES (?, ?, ?)`,
					ref, keyID, rel.Properties[name]); err != nil {
					return nil, fmt.Errorf("insert property %q: %w", name, err)
				}
			}
		}

		relType := rel.Type
		if relType == "" {
			relType = "RELATED"
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO relationships(source, target, type, property_ref) VALUES (?, ?, ?, ?)`,
			rel.Source, rel.Target, relType, ref)
		if err != nil {
			return nil, fmt.Errorf("insert relationship: %w", err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return ids, nil
}

func ensureKey(ctx context.Context, tx *sql.Tx, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO property_keys(name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert property key %q: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM property_keys WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("read property key %q: %w", name, err)
	}
	cache[name] = id
	return id, nil
}

// Clear removes every relationship and property record.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM relationships;
DELETE FROM relationship_properties;
DELETE FROM property_records;
DELETE FROM graph_meta;
`)
	if err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

var seedTypes = []string{"KNOWS", "LIKES", "FOLLOWS"}

// Seed replaces the store content with a random graph determined by seed.
// Roughly one relationship in ten carries no properties.
func (s *Store) Seed(ctx context.Context, nodes int64, rels int, seed int64) error {
	if nodes <= 0 || rels < 0 {
		return fmt.Errorf("seed needs a positive node count and non-negative relationship count")
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))
	const chunk = 5000
	for done := 0; done < rels; done += chunk {
		n := min(chunk, rels-done)
		page := make([]Relationship, n)
		for i := range page {
			page[i] = Relationship{
				Source: rng.Int63n(nodes),
				Target: rng.Int63n(nodes),
				Type:   seedTypes[rng.Intn(len(seedTypes))],
			}
			if rng.Intn(10) != 0 {
				page[i].Properties = map[string]float64{
					"weight": float64(rng.Intn(1000)) / 10,
					"since":  float64(1990 + rng.Intn(35)),
				}
			}
		}
		if _, err := s.AddRelationships(ctx, page); err != nil {
			return err
		}
	}
	return s.SetNodeCount(ctx, nodes)
}
