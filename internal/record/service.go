package record

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ids"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/phi"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	reportDisclaimer = "Automated interpretation for demonstration purposes only. Not a substitute for clinical judgment."
)

// Service runs interpretations and guards access to the sealed payloads.
// Owners see their own recordings; clinicians and admins see all of them.
type Service struct {
	store Store
	codec *phi.Codec
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, codec *phi.Codec, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("record: store is required")
	}
	if codec == nil {
		return nil, errors.New("record: codec is required")
	}
	s := &Service{store: store, codec: codec, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Analyze parses the upload, runs the interpreter, seals signal and analysis
// into one envelope and persists the recording. Only the clear classification
// comes back; the waveform is retrievable through Signal and Export.
func (s *Service) Analyze(ctx context.Context, actor auth.Principal, raw []byte, contentType string) (*Recording, error) {
	mt := "application/json"
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, ErrUnsupportedContentType
		}
		mt = parsed
	}
	if mt != "application/json" {
		return nil, ErrUnsupportedContentType
	}

	sig, err := ecg.ParseJSON(raw)
	if err != nil {
		return nil, err
	}
	analysis, err := ecg.Analyze(sig)
	if err != nil {
		return nil, err
	}

	blob, _, err := s.codec.EncryptJSON(storedPayload{Signal: sig, Analysis: analysis})
	if err != nil {
		return nil, fmt.Errorf("record: seal payload: %w", err)
	}

	now := s.now().UTC()
	rec := &Recording{
		ID:          ids.New(),
		OwnerID:     actor.ID,
		ContentType: mt,
		// The integrity digest covers the bytes the client uploaded, so it
		// can be recomputed on their side and compared.
		Digest: phi.Digest(raw),
		Classification: Classification{
			Diagnosis:       analysis.Diagnosis,
			RiskLevel:       analysis.RiskLevel,
			Confidence:      analysis.Confidence,
			TotalBeats:      analysis.TotalBeats,
			AbnormalBeats:   analysis.AbnormalBeats,
			HeartRateBPM:    analysis.HeartRateBPM,
			SampleRate:      sig.SampleRate,
			DurationSeconds: sig.Duration(),
		},
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
		EncryptedPayload: blob,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	obs.IncRecordingAnalyzed(string(analysis.RiskLevel))
	return rec, nil
}

// Get returns the clear metadata of one recording.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Recording, error) {
	return s.fetch(ctx, actor, id)
}

// ListForPrincipal lists clear metadata. Plain users are pinned to their own
// recordings; only admins may include soft-deleted rows.
func (s *Service) ListForPrincipal(ctx context.Context, actor auth.Principal, f Filter) ([]Recording, int, error) {
	if actor.Role == auth.RoleUser {
		f.OwnerID = actor.ID
		f.IncludeDeleted = false
	}
	if f.IncludeDeleted && actor.Role != auth.RoleAdmin {
		f.IncludeDeleted = false
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	return s.store.List(ctx, f)
}

// Signal decrypts the stored envelope and returns the raw waveform.
func (s *Service) Signal(ctx context.Context, actor auth.Principal, id string) (*ecg.Signal, error) {
	rec, err := s.fetch(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.open(rec)
	if err != nil {
		return nil, err
	}
	return &payload.Signal, nil
}

// Report assembles the reviewable view: classification, digest and the
// feedback trail. Feedback notes stay sealed; no waveform is decrypted.
func (s *Service) Report(ctx context.Context, actor auth.Principal, id string) (*Report, error) {
	rec, err := s.fetch(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	fbs, err := s.store.ListFeedback(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Report{
		RecordingID:    rec.ID,
		OwnerID:        rec.OwnerID,
		GeneratedAt:    s.now().UTC(),
		ContentType:    rec.ContentType,
		Digest:         rec.Digest,
		Classification: rec.Classification,
		Feedback:       fbs,
		Disclaimer:     reportDisclaimer,
	}, nil
}

// Export returns the fully decrypted bundle for download.
func (s *Service) Export(ctx context.Context, actor auth.Principal, id string) (*Bundle, error) {
	rec, err := s.fetch(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.open(rec)
	if err != nil {
		return nil, err
	}
	return &Bundle{Recording: *rec, Signal: payload.Signal, Analysis: payload.Analysis}, nil
}

// Delete soft-deletes a recording. Owners may delete their own; otherwise
// only admins.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == StatusDeleted {
		return ErrNotFound
	}
	if actor.ID != rec.OwnerID {
		if err := auth.Authorize(actor); err != nil {
			return err
		}
	}
	return s.store.SoftDelete(ctx, id, s.now().UTC())
}

// SubmitFeedback records a clinician's correction. The predicted diagnosis is
// taken from the recording itself; notes, if any, are sealed before storage.
func (s *Service) SubmitFeedback(ctx context.Context, actor auth.Principal, recordingID, trueDiagnosis, notes string) (*Feedback, error) {
	if err := auth.Authorize(actor, auth.RoleClinician); err != nil {
		return nil, err
	}
	trueDiagnosis = strings.TrimSpace(trueDiagnosis)
	if trueDiagnosis == "" {
		return nil, ErrInvalidFeedback
	}
	rec, err := s.store.Find(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusDeleted {
		return nil, ErrNotFound
	}

	fb := &Feedback{
		ID:                 ids.New(),
		RecordingID:        rec.ID,
		ClinicianID:        actor.ID,
		PredictedDiagnosis: rec.Classification.Diagnosis,
		TrueDiagnosis:      trueDiagnosis,
		Notes:              strings.TrimSpace(notes),
		CreatedAt:          s.now().UTC(),
	}
	if fb.Notes != "" {
		blob, _, err := s.codec.EncryptJSON(fb.Notes)
		if err != nil {
			return nil, fmt.Errorf("record: seal notes: %w", err)
		}
		fb.EncryptedNotes = blob
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedback returns the trail with notes decrypted. Clinician or admin
// only; owners see the trail without notes through Report.
func (s *Service) ListFeedback(ctx context.Context, actor auth.Principal, recordingID string) ([]Feedback, error) {
	if err := auth.Authorize(actor, auth.RoleClinician); err != nil {
		return nil, err
	}
	rec, err := s.store.Find(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusDeleted {
		return nil, ErrNotFound
	}
	fbs, err := s.store.ListFeedback(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	for i := range fbs {
		if fbs[i].EncryptedNotes == "" {
			continue
		}
		var notes string
		if err := s.codec.DecryptJSON(fbs[i].EncryptedNotes, &notes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadUnreadable, err)
		}
		fbs[i].Notes = notes
	}
	return fbs, nil
}

func (s *Service) fetch(ctx context.Context, actor auth.Principal, id string) (*Recording, error) {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusDeleted {
		return nil, ErrNotFound
	}
	if actor.ID != rec.OwnerID {
		if err := auth.Authorize(actor, auth.RoleClinician); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Service) open(rec *Recording) (*storedPayload, error) {
	var payload storedPayload
	if err := s.codec.DecryptJSON(rec.EncryptedPayload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadUnreadable, err)
	}
	return &payload, nil
}
