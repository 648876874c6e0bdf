package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/record"
)

// RecordingStore implements record.Store on Postgres. There is no UPDATE
// statement for encrypted_payload anywhere in this file: the sealed blob is
// written once by Create and only ever read afterwards.
type RecordingStore struct {
	db *sql.DB
}

var _ record.Store = (*RecordingStore)(nil)

const recordingColumns = `id, owner_id, content_type, digest, encrypted_payload,
	diagnosis, risk_level, confidence, total_beats, abnormal_beats,
	heart_rate_bpm, sample_rate, duration_seconds, status, created_at, updated_at`

func (s *RecordingStore) Create(ctx context.Context, rec *record.Recording) error {
	_, err := s.db.ExecContext(ctx, `
		insert into recordings
			(id, owner_id, content_type, digest, encrypted_payload,
			 diagnosis, risk_level, confidence, total_beats, abnormal_beats,
			 heart_rate_bpm, sample_rate, duration_seconds, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, rec.ID, rec.OwnerID, rec.ContentType, rec.Digest, rec.EncryptedPayload,
		rec.Classification.Diagnosis, string(rec.Classification.RiskLevel),
		rec.Classification.Confidence, rec.Classification.TotalBeats,
		rec.Classification.AbnormalBeats, rec.Classification.HeartRateBPM,
		rec.Classification.SampleRate, rec.Classification.DurationSeconds,
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return record.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *RecordingStore) Find(ctx context.Context, id string) (*record.Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordingColumns+` from recordings where id = $1`, id)
	return scanRecording(row)
}

func (s *RecordingStore) List(ctx context.Context, f record.Filter) ([]record.Recording, int, error) {
	where, args := recordingFilter(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from recordings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Recording ids are ULIDs, so id order is creation order.
	query := `select ` + recordingColumns + ` from recordings` + where + ` order by id desc`
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

	out := make([]record.Recording, 0, f.Limit)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func (s *RecordingStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update recordings set status = 'deleted', updated_at = $2
		 where id = $1 and status <> 'deleted'
	`, id, at.UTC())
	if err != nil {
		return err
	}
	return execAffectingOne(res, record.ErrNotFound)
}

func (s *RecordingStore) CreateFeedback(ctx context.Context, fb *record.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		insert into recording_feedback
			(id, recording_id, clinician_id, predicted_diagnosis, true_diagnosis, encrypted_notes, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, fb.ID, fb.RecordingID, fb.ClinicianID, fb.PredictedDiagnosis, fb.TrueDiagnosis,
		fb.EncryptedNotes, fb.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return record.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *RecordingStore) ListFeedback(ctx context.Context, recordingID string) ([]record.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, recording_id, clinician_id, predicted_diagnosis, true_diagnosis, encrypted_notes, created_at
		  from recording_feedback
		 where recording_id = $1
		 order by id
	`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Feedback
	for rows.Next() {
		var fb record.Feedback
		if err := rows.Scan(&fb.ID, &fb.RecordingID, &fb.ClinicianID,
			&fb.PredictedDiagnosis, &fb.TrueDiagnosis, &fb.EncryptedNotes, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func recordingFilter(f record.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Risk != "" {
		args = append(args, f.Risk)
		conds = append(conds, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	if !f.IncludeDeleted {
		conds = append(conds, "status <> 'deleted'")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func scanRecording(row rowScanner) (*record.Recording, error) {
	var (
		rec    record.Recording
		risk   string
		status string
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.ContentType, &rec.Digest, &rec.EncryptedPayload,
		&rec.Classification.Diagnosis, &risk, &rec.Classification.Confidence,
		&rec.Classification.TotalBeats, &rec.Classification.AbnormalBeats,
		&rec.Classification.HeartRateBPM, &rec.Classification.SampleRate,
		&rec.Classification.DurationSeconds, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Classification.RiskLevel = ecg.RiskLevel(risk)
	rec.Status = record.Status(status)
	return &rec, nil
}
