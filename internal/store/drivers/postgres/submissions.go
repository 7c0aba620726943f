package postgres

import (
	"context"
	"database/sql"

	"github.com/freenoai/authd/internal/domain"
)

type submissionsRepo struct {
	db dbtx
}

func (r *submissionsRepo) CreateSubmission(ctx context.Context, s domain.ThesisSubmission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO thesis_submissions (id, user_id, title, document_url, report_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, now(), now())`,
		s.ID, s.UserID, s.Title, s.DocumentURL, s.ReportID, s.Status,
	)
	return mapErr(err)
}

func (r *submissionsRepo) GetSubmissionByID(ctx context.Context, id string) (domain.ThesisSubmission, error) {
	var s domain.ThesisSubmission
	var reportID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, document_url, report_id, status, created_at, updated_at
		 FROM thesis_submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.DocumentURL, &reportID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.ThesisSubmission{}, mapErr(err)
	}
	s.ReportID = reportID.String
	return s, nil
}

func (r *submissionsRepo) ListSubmissionsByUser(ctx context.Context, userID string) ([]domain.ThesisSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, document_url, report_id, status, created_at, updated_at
		 FROM thesis_submissions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var subs []domain.ThesisSubmission
	for rows.Next() {
		var s domain.ThesisSubmission
		var reportID sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.DocumentURL, &reportID, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.ReportID = reportID.String
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *submissionsRepo) UpdateSubmissionReport(
	ctx context.Context,
	id, reportID string,
	status domain.SubmissionStatus,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE thesis_submissions
		 SET report_id = NULLIF($1, ''), status = $2, updated_at = now()
		 WHERE id = $3`,
		reportID, status, id,
	)
	return mapAffected(res, err)
}
