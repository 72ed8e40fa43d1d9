package shared

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// WorkflowColumns lists the review columns in WorkflowScan order.
const WorkflowColumns = `status, created_by_id, submitted_at, submitted_by_id, reviewed_at, reviewed_by_id, review_comment, version`

// WorkflowScan returns scan destinations matching WorkflowColumns.
func WorkflowScan(st *workflow.State) []any {
	return []any{&st.Status, &st.CreatedByID, &st.SubmittedAt, &st.SubmittedByID, &st.ReviewedAt, &st.ReviewedByID, &st.ReviewComment, &st.Version}
}

// Column is an extra assignment written alongside a transition.
type Column struct {
	Name  string
	Value any
}

// SaveWorkflowState writes st and extra columns to table in one update guarded
// by expected. A missing row yields ErrNotFound; a moved version ErrConflict.
func SaveWorkflowState(ctx context.Context, q db.Querier, table string, id uuid.UUID, st *workflow.State, expected int64, extra ...Column) error {
	args := []any{id, expected, string(st.Status), st.SubmittedAt, st.SubmittedByID, st.ReviewedAt, st.ReviewedByID, st.ReviewComment}
	sets := []string{
		"status=$3", "submitted_at=$4", "submitted_by_id=$5",
		"reviewed_at=$6", "reviewed_by_id=$7", "review_comment=$8",
	}
	for _, c := range extra {
		args = append(args, c.Value)
		sets = append(sets, c.Name+"=$"+strconv.Itoa(len(args)))
	}
	sets = append(sets, "version=version+1", "updated_at=NOW()")
	sql := `UPDATE ` + table + ` SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 AND version=$2`
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, httpx.ErrNotFound)
	}
	return fmt.Errorf("%w: %s %s was modified concurrently", httpx.ErrConflict, table, id)
}
