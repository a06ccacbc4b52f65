package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuditEntry is a row to append to audit_logs.
type AuditEntry struct {
	ActorKind    string
	ActorUserID  *string
	Action       string
	ResourceType string
	ResourceID   *string
	Method       string
	Path         string
	Route        *string
	Status       int
	IP           *string
	UserAgent    *string
	RequestID    *string
	Metadata     []byte
}

// AuditLog is a stored audit row.
type AuditLog struct {
	ID           int64     `json:"id"`
	ActorKind    string    `json:"actorKind"`
	ActorUserID  *string   `json:"actorUserId,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   *string   `json:"resourceId,omitempty"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Status       int       `json:"status"`
	RequestID    *string   `json:"requestId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// InsertAuditLog appends an audit row.
func (s *Store) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs (
		actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route,
		status, ip, user_agent, request_id, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)`,
		e.ActorKind, e.ActorUserID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route,
		e.Status, e.IP, e.UserAgent, e.RequestID, e.Metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorUserID  string
	Since        time.Time
	Limit        int
	Offset       int
}

func (f AuditFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListAuditLogs returns matching audit rows newest first together with the
// number of rows the filter matches overall.
func (s *Store) ListAuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	where, args := f.where()
	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf(`SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
		method, path, status, request_id, created_at, count(*) OVER ()
		FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := make([]AuditLog, 0, f.Limit)
	total := 0
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.ActorKind, &l.ActorUserID, &l.Action, &l.ResourceType, &l.ResourceID,
			&l.Method, &l.Path, &l.Status, &l.RequestID, &l.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return out, total, nil
}
