package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
)

// ReportContent files a moderation report in pending state and returns it.
// The reporter name defaults to the reporter's profile username.
func (s *Store) ReportContent(ctx context.Context, report core.Report) (*core.Report, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateReport(report); err != nil {
		return nil, err
	}

	if report.ReporterUsername == "" {
		reporter, err := s.GetUser(ctx, report.ReporterUserID)
		if err != nil {
			return nil, err
		}
		if reporter != nil {
			report.ReporterUsername = reporter.Username
		}
	}

	report.ID = uuid.NewString()
	report.Status = core.ReportStatusPending
	report.CreatedAt = s.now()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_user_id, reporter_username, target_type, target_id,
			target_user_id, target_username, reason, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterUserID, report.ReporterUsername, string(report.TargetType), report.TargetID,
		report.TargetUserID, report.TargetUsername, string(report.Reason), nullString(report.Description),
		string(report.Status), report.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("submit report: %w", err)
	}
	return &report, nil
}

// ListReports returns reports, newest first. An empty status lists all.
func (s *Store) ListReports(ctx context.Context, status core.ReportStatus) ([]core.Report, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, string(status))
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, reporter_user_id, reporter_username, target_type, target_id,
			target_user_id, target_username, reason, description, status, created_at
		FROM reports
		%s
		ORDER BY created_at DESC, id DESC
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	reports := []core.Report{}
	for rows.Next() {
		var (
			r           core.Report
			targetType  string
			reason      string
			statusValue string
			description sql.NullString
			createdAt   int64
		)
		if err := rows.Scan(&r.ID, &r.ReporterUserID, &r.ReporterUsername, &targetType, &r.TargetID,
			&r.TargetUserID, &r.TargetUsername, &reason, &description, &statusValue, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reports: %w", err)
		}
		r.TargetType = core.ReportTarget(targetType)
		r.Reason = core.ReportReason(reason)
		r.Status = core.ReportStatus(statusValue)
		r.Description = description.String
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func validateReport(report core.Report) error {
	if strings.TrimSpace(report.ReporterUserID) == "" {
		return fmt.Errorf("%w: reporter user id is required", engine.ErrInvalidInput)
	}
	if strings.TrimSpace(report.TargetID) == "" {
		return fmt.Errorf("%w: report target id is required", engine.ErrInvalidInput)
	}
	switch report.TargetType {
	case core.ReportTargetPost, core.ReportTargetComment, core.ReportTargetUser:
	default:
		return fmt.Errorf("%w: invalid report target type %q", engine.ErrInvalidInput, report.TargetType)
	}
	if _, ok := core.ReportReasonLabels[report.Reason]; !ok {
		return fmt.Errorf("%w: invalid report reason %q", engine.ErrInvalidInput, report.Reason)
	}
	return nil
}
