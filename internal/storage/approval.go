package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Approval is a destructive MCP action waiting for the user. The standalone
// MCP process writes it; the desktop app shows it and records the answer.
type Approval struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Metadata    string    `json:"metadata"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ApprovalStore is the cross-process approval table.
type ApprovalStore struct {
	db *DB
}

func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

func (s *ApprovalStore) CreateApproval(a *Approval) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = ApprovalPending
	}
	_, err := s.db.exec(s.db.conn,
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Description, a.Status, a.Metadata, a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// ApprovalStatus returns the status of id. ok is false once the row is gone.
func (s *ApprovalStore) ApprovalStatus(id string) (status string, ok bool, err error) {
	err = s.db.queryRow(s.db.conn, `SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// ResolveApproval records the user's answer for a pending action.
func (s *ApprovalStore) ResolveApproval(id string, approved bool) error {
	status := ApprovalRejected
	if approved {
		status = ApprovalApproved
	}
	_, err := s.db.exec(s.db.conn,
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`, status, id, ApprovalPending,
	)
	return err
}

func (s *ApprovalStore) DeleteApproval(id string) error {
	_, err := s.db.exec(s.db.conn, `DELETE FROM mcp_approvals WHERE id = ?`, id)
	return err
}

// ListPendingApprovals returns pending actions, oldest first.
func (s *ApprovalStore) ListPendingApprovals() ([]Approval, error) {
	rows, err := s.db.query(s.db.conn,
		`SELECT id, tool, description, status, metadata, created_at FROM mcp_approvals
		 WHERE status = ? ORDER BY created_at, id`, ApprovalPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		var created int64
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.Status, &a.Metadata, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
