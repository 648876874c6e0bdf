// Package record manages encrypted ECG recordings and the clinician feedback
// attached to them. Raw signals and full analyses are sealed by the phi codec
// before they reach storage; only the classification summary stays in clear.
package record

import (
	"errors"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
)

// Status marks whether a recording is visible. Deletion is a soft flag so
// the audit trail keeps pointing at a row that existed.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Classification is the clear-text summary of an interpretation. It carries
// no waveform data and is safe to return from list endpoints.
type Classification struct {
	Diagnosis       string        `json:"diagnosis"`
	RiskLevel       ecg.RiskLevel `json:"risk_level"`
	Confidence      float64       `json:"confidence"`
	TotalBeats      int           `json:"total_beats"`
	AbnormalBeats   int           `json:"abnormal_beats"`
	HeartRateBPM    float64       `json:"heart_rate_bpm"`
	SampleRate      int           `json:"sample_rate"`
	DurationSeconds float64       `json:"duration_seconds"`
}

// Recording is one analyzed ECG upload. EncryptedPayload holds the sealed
// signal and analysis; it is write-once and never serialized to JSON. Digest
// identifies the sealed plaintext so integrity can be checked after decrypt.
type Recording struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	ContentType    string         `json:"content_type"`
	Digest         string         `json:"digest"`
	Classification Classification `json:"classification"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	EncryptedPayload string `json:"-"`
}

// Feedback is a clinician's correction of an interpretation. Notes may
// contain patient context, so they are sealed like recording payloads and
// only decrypted for clinician reads.
type Feedback struct {
	ID                 string    `json:"id"`
	RecordingID        string    `json:"recording_id"`
	ClinicianID        string    `json:"clinician_id"`
	PredictedDiagnosis string    `json:"predicted_diagnosis"`
	TrueDiagnosis      string    `json:"true_diagnosis"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`

	EncryptedNotes string `json:"-"`
}

// Report is the reviewable view of a recording: classification, payload
// digest and the feedback trail, without decrypting the waveform. Feedback
// notes stay sealed here.
type Report struct {
	RecordingID    string         `json:"recording_id"`
	OwnerID        string         `json:"owner_id"`
	GeneratedAt    time.Time      `json:"generated_at"`
	ContentType    string         `json:"content_type"`
	Digest         string         `json:"digest"`
	Classification Classification `json:"classification"`
	Feedback       []Feedback     `json:"feedback"`
	Disclaimer     string         `json:"disclaimer"`
}

// Bundle is the full decrypted export of a recording.
type Bundle struct {
	Recording Recording    `json:"recording"`
	Signal    ecg.Signal   `json:"signal"`
	Analysis  ecg.Analysis `json:"analysis"`
}

// storedPayload is what actually gets sealed into EncryptedPayload.
type storedPayload struct {
	Signal   ecg.Signal   `json:"signal"`
	Analysis ecg.Analysis `json:"analysis"`
}

var (
	ErrNotFound               = errors.New("record: recording not found")
	ErrUnsupportedContentType = errors.New("record: unsupported content type")
	ErrInvalidFeedback        = errors.New("record: feedback requires a true diagnosis")
	ErrPayloadUnreadable      = errors.New("record: payload unreadable")
)
