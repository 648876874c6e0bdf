package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
)

// AuditStore implements audit.Store on Postgres. Append is the only write:
// the package defines no UPDATE or DELETE against audit_entries, matching
// the append-only contract of the trail.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

const auditColumns = `id, occurred_at, actor_id, actor_email, actor_role,
	action, resource_kind, resource_id, method, path, origin, user_agent,
	request_id, status_code, success, metadata`

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("pg: marshal audit metadata: %w", err)
		}
		meta = b
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_entries
			(id, occurred_at, actor_id, actor_email, actor_role,
			 action, resource_kind, resource_id, method, path, origin, user_agent,
			 request_id, status_code, success, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, e.ID, e.OccurredAt, e.ActorID, e.ActorEmail, e.ActorRole,
		string(e.Action), e.ResourceKind, e.ResourceID, e.Method, e.Path, e.Origin,
		e.UserAgent, e.RequestID, e.StatusCode, e.Success, meta)
	return err
}

func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Entry, int, error) {
	where, args := auditFilter(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from audit_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Entry ids are ULIDs, so id order is time order; newest first.
	query := `select ` + auditColumns + ` from audit_entries` + where + ` order by id desc`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" offset $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0, f.Limit)
	for rows.Next() {
		var (
			e      audit.Entry
			action string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorID, &e.ActorEmail, &e.ActorRole,
			&action, &e.ResourceKind, &e.ResourceID, &e.Method, &e.Path, &e.Origin,
			&e.UserAgent, &e.RequestID, &e.StatusCode, &e.Success, &meta); err != nil {
			return nil, 0, err
		}
		e.Action = audit.Action(action)
		if len(meta) > 0 && string(meta) != "{}" {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("pg: decode audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func auditFilter(f audit.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, string(f.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.ResourceKind != "" {
		args = append(args, f.ResourceKind)
		conds = append(conds, fmt.Sprintf("resource_kind = $%d", len(args)))
	}
	if f.ResourceID != "" {
		args = append(args, f.ResourceID)
		conds = append(conds, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		conds = append(conds, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}
