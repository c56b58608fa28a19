package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"reqflow/internal/domain"
)

// WorkflowStore implements domain.WorkflowStore on SQL.
type WorkflowStore struct {
	db *DB
}

func NewWorkflowStore(db *DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

func (s *WorkflowStore) CreateWorkflow(w *domain.Workflow) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	trig, reqs, err := encodeWorkflow(w)
	if err != nil {
		return err
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = s.db.exec(tx,
		`INSERT INTO workflows (id, name, trigger_json, requests_json, viewport_x, viewport_y, viewport_zoom, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, trig, reqs, w.Viewport.X, w.Viewport.Y, w.Viewport.Zoom,
		w.CreatedAt.UnixMilli(), w.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	if err := s.writePositions(tx, w); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *WorkflowStore) GetWorkflow(id string) (*domain.Workflow, error) {
	w := &domain.Workflow{}
	var trig, reqs string
	var created, updated int64
	err := s.db.queryRow(s.db.conn,
		`SELECT id, name, trigger_json, requests_json, viewport_x, viewport_y, viewport_zoom, created_at, updated_at
		 FROM workflows WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &trig, &reqs, &w.Viewport.X, &w.Viewport.Y, &w.Viewport.Zoom, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	w.CreatedAt = time.UnixMilli(created)
	w.UpdatedAt = time.UnixMilli(updated)

	if err := json.Unmarshal([]byte(trig), &w.Trigger); err != nil {
		return nil, fmt.Errorf("decode trigger: %w", err)
	}
	if err := json.Unmarshal([]byte(reqs), &w.Requests); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}

	rows, err := s.db.query(s.db.conn,
		`SELECT node_id, x, y FROM node_positions WHERE workflow_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	w.NodePositions = make(map[string]domain.Point)
	for rows.Next() {
		var nodeID string
		var p domain.Point
		if err := rows.Scan(&nodeID, &p.X, &p.Y); err != nil {
			return nil, err
		}
		w.NodePositions[nodeID] = p
	}
	return w, rows.Err()
}

func (s *WorkflowStore) ListWorkflows() ([]domain.WorkflowSummary, error) {
	rows, err := s.db.query(s.db.conn,
		`SELECT id, name, requests_json, created_at, updated_at FROM workflows`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		sum     domain.WorkflowSummary
		created int64
	}
	var list []row
	for rows.Next() {
		var r row
		var reqs string
		var updated int64
		if err := rows.Scan(&r.sum.ID, &r.sum.Name, &reqs, &r.created, &updated); err != nil {
			return nil, err
		}
		var rs []json.RawMessage
		if err := json.Unmarshal([]byte(reqs), &rs); err != nil {
			return nil, fmt.Errorf("decode requests of %s: %w", r.sum.ID, err)
		}
		r.sum.RequestCount = len(rs)
		r.sum.UpdatedAt = time.UnixMilli(updated)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].created != list[j].created {
			return list[i].created < list[j].created
		}
		return list[i].sum.ID < list[j].sum.ID
	})
	out := make([]domain.WorkflowSummary, len(list))
	for i, r := range list {
		out[i] = r.sum
	}
	return out, nil
}

func (s *WorkflowStore) SaveWorkflow(w *domain.Workflow) error {
	w.UpdatedAt = time.Now()
	trig, reqs, err := encodeWorkflow(w)
	if err != nil {
		return err
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := s.db.queryRow(tx, `SELECT COUNT(*) FROM workflows WHERE id = ?`, w.ID).Scan(&n); err != nil {
		return fmt.Errorf("check workflow: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("workflow %s: %w", w.ID, domain.ErrNotFound)
	}

	_, err = s.db.exec(tx,
		`UPDATE workflows SET name = ?, trigger_json = ?, requests_json = ?, viewport_x = ?, viewport_y = ?, viewport_zoom = ?, updated_at = ?
		 WHERE id = ?`,
		w.Name, trig, reqs, w.Viewport.X, w.Viewport.Y, w.Viewport.Zoom, w.UpdatedAt.UnixMilli(), w.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if _, err := s.db.exec(tx, `DELETE FROM node_positions WHERE workflow_id = ?`, w.ID); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	if err := s.writePositions(tx, w); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *WorkflowStore) DeleteWorkflow(id string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.db.exec(tx, `DELETE FROM node_positions WHERE workflow_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.exec(tx, `DELETE FROM workflows WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *WorkflowStore) CountWorkflows() (int, error) {
	var n int
	err := s.db.queryRow(s.db.conn, `SELECT COUNT(*) FROM workflows`).Scan(&n)
	return n, err
}

func (s *WorkflowStore) writePositions(tx *sql.Tx, w *domain.Workflow) error {
	ids := make([]string, 0, len(w.NodePositions))
	for id := range w.NodePositions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := w.NodePositions[id]
		_, err := s.db.exec(tx,
			`INSERT INTO node_positions (workflow_id, node_id, x, y) VALUES (?, ?, ?, ?)`,
			w.ID, id, p.X, p.Y,
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", id, err)
		}
	}
	return nil
}

func encodeWorkflow(w *domain.Workflow) (trigger, requests string, err error) {
	t, err := json.Marshal(w.Trigger)
	if err != nil {
		return "", "", fmt.Errorf("encode trigger: %w", err)
	}
	reqs := w.Requests
	if reqs == nil {
		reqs = []domain.WorkflowRequest{}
	}
	r, err := json.Marshal(reqs)
	if err != nil {
		return "", "", fmt.Errorf("encode requests: %w", err)
	}
	return string(t), string(r), nil
}
