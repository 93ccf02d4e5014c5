package store

import (
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jward/detective/internal/classify"
)

// SaveRun inserts a run for root with every item and its tags within a
// single transaction. Nothing is written if any insert fails.
func (s *Store) SaveRun(root string, items []classify.Item) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Root: root, StartedAt: time.Now().UTC()}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO runs (id, root, started_at) VALUES (?, ?, ?)",
		run.ID, run.Root, run.StartedAt); err != nil {
		return nil, fmt.Errorf("save run: insert run: %w", err)
	}

	itemStmt, err := tx.Prepare(
		"INSERT INTO items (run_id, kind, value, relpath, abspath, plan_stack) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("save run: prepare items: %w", err)
	}
	defer itemStmt.Close()
	tagStmt, err := tx.Prepare("INSERT INTO tags (item_id, classifier, tag) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("save run: prepare tags: %w", err)
	}
	defer tagStmt.Close()

	for _, it := range items {
		var rel, abs, stack string
		switch v := it.(type) {
		case *classify.FileItem:
			rel, abs = v.RelPath(), v.AbsPath()
		case *classify.PackageItem:
			stack = marshalStack(v.PlanStack())
		}
		res, err := itemStmt.Exec(run.ID, string(it.Kind()), it.Value(), rel, abs, stack)
		if err != nil {
			return nil, fmt.Errorf("save run: item %q: %w", it.Value(), err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("save run: last insert id: %w", err)
		}
		for classifier, tags := range it.TagsByClassifier() {
			for _, tag := range tags {
				if _, err := tagStmt.Exec(itemID, classifier, tag); err != nil {
					return nil, fmt.Errorf("save run: tag %q on %q: %w", tag, it.Value(), err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("save run: commit: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run for root, or nil if there is none.
func (s *Store) LatestRun(root string) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRow(
		"SELECT id, root, started_at FROM runs WHERE root = ? ORDER BY started_at DESC, rowid DESC LIMIT 1", root,
	).Scan(&r.ID, &r.Root, &r.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// Runs returns every run, newest first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query("SELECT id, root, started_at FROM runs ORDER BY started_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns every item of a run with its tags, in insertion order.
func (s *Store) Items(runID string) ([]*Item, error) {
	return s.queryItems(
		"SELECT id, run_id, kind, value, relpath, abspath, plan_stack FROM items WHERE run_id = ? ORDER BY id",
		runID)
}

// ItemsWithTag returns the items of a run carrying tag from any classifier.
func (s *Store) ItemsWithTag(runID, tag string) ([]*Item, error) {
	return s.queryItems(`SELECT id, run_id, kind, value, relpath, abspath, plan_stack FROM items
		WHERE run_id = ? AND id IN (SELECT item_id FROM tags WHERE tag = ?) ORDER BY id`,
		runID, tag)
}

// TagsForValue returns the tags, by classifier, of the items of a run whose
// value is value. A value may appear once as a file and once as a package,
// in which case the tags are merged. Nil means no such item.
func (s *Store) TagsForValue(runID, value string) (map[string][]string, error) {
	items, err := s.queryItems(
		"SELECT id, run_id, kind, value, relpath, abspath, plan_stack FROM items WHERE run_id = ? AND value = ? ORDER BY id",
		runID, value)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	merged := make(map[string][]string)
	for _, it := range items {
		for classifier, tags := range it.Tags {
			merged[classifier] = append(merged[classifier], tags...)
		}
	}
	for classifier, tags := range merged {
		sort.Strings(tags)
		merged[classifier] = slices.Compact(tags)
	}
	return merged, nil
}

func (s *Store) queryItems(query string, args ...any) ([]*Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	byID := make(map[int64]*Item)
	for rows.Next() {
		it := &Item{Tags: map[string][]string{}}
		var rel, abs, stack sql.NullString
		if err := rows.Scan(&it.ID, &it.RunID, &it.Kind, &it.Value, &rel, &abs, &stack); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.RelPath, it.AbsPath = rel.String, abs.String
		it.PlanStack = unmarshalStack(stack.String)
		items = append(items, it)
		byID[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before loading tags.
	rows.Close()

	if err := s.loadTags(byID); err != nil {
		return nil, err
	}
	return items, nil
}

// tagChunk bounds the host parameters of a single tag query.
const tagChunk = 500

func (s *Store) loadTags(byID map[int64]*Item) error {
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for start := 0; start < len(ids); start += tagChunk {
		chunk := ids[start:min(start+tagChunk, len(ids))]
		rows, err := s.db.Query(
			"SELECT item_id, classifier, tag FROM tags WHERE item_id IN ("+placeholderList(len(chunk))+") ORDER BY classifier, tag",
			int64sToArgs(chunk)...)
		if err != nil {
			return fmt.Errorf("query tags: %w", err)
		}
		for rows.Next() {
			var id int64
			var classifier, tag string
			if err := rows.Scan(&id, &classifier, &tag); err != nil {
				rows.Close()
				return fmt.Errorf("scan tag: %w", err)
			}
			it := byID[id]
			it.Tags[classifier] = append(it.Tags[classifier], tag)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
