package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates the try-on job lifecycle states.
type JobStatus string

const (
	// Submission path.
	JobStatusInitialized        JobStatus = "initialized"
	JobStatusPreprocessingImage JobStatus = "preprocessing-image"
	JobStatusUploadingImage     JobStatus = "uploading-image"
	JobStatusDispatching        JobStatus = "dispatching"
	JobStatusQueued             JobStatus = "queued"
	JobStatusErrorPreprocessing JobStatus = "error-preprocessing"

	// Background processing.
	JobStatusProcessingStarted        JobStatus = "processing-started"
	JobStatusDownloadingImages        JobStatus = "downloading-images"
	JobStatusProcessingImages         JobStatus = "processing-images"
	JobStatusCallingOpenAI            JobStatus = "calling-openai"
	JobStatusProcessingOpenAIResponse JobStatus = "processing-openai-response"
	JobStatusUploadingResult          JobStatus = "uploading-result"
	JobStatusCompleted                JobStatus = "completed"
	JobStatusError                    JobStatus = "error"

	// JobStatusGone is synthesized for ids the job store does not know.
	JobStatusGone JobStatus = "Gone"
)

// AllJobStatuses lists every status a job record can carry.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusInitialized,
		JobStatusPreprocessingImage,
		JobStatusUploadingImage,
		JobStatusDispatching,
		JobStatusQueued,
		JobStatusErrorPreprocessing,
		JobStatusProcessingStarted,
		JobStatusDownloadingImages,
		JobStatusProcessingImages,
		JobStatusCallingOpenAI,
		JobStatusProcessingOpenAIResponse,
		JobStatusUploadingResult,
		JobStatusCompleted,
		JobStatusError,
		JobStatusGone,
	}
}

// Terminal reports whether no further transition will happen without a new submission.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusErrorPreprocessing, JobStatusGone:
		return true
	default:
		return false
	}
}

// Failed reports whether the status is one of the error states.
func (s JobStatus) Failed() bool {
	return s == JobStatusError || s == JobStatusErrorPreprocessing || s == JobStatusGone
}

// DressStatus is the user-facing label derived from a JobStatus.
type DressStatus string

const (
	DressStatusSizing  DressStatus = "Sizing Item"
	DressStatusStitch  DressStatus = "Stitching"
	DressStatusFitting DressStatus = "Final Fitting"
	DressStatusReveal  DressStatus = "Click To Reveal"
	DressStatusGone    DressStatus = "Gone"
)

// DressStatus maps the internal status to its label. Unknown values map to Gone.
func (s JobStatus) DressStatus() DressStatus {
	switch s {
	case JobStatusInitialized,
		JobStatusPreprocessingImage,
		JobStatusUploadingImage,
		JobStatusDispatching,
		JobStatusQueued,
		JobStatusProcessingStarted,
		JobStatusDownloadingImages:
		return DressStatusSizing
	case JobStatusProcessingImages, JobStatusCallingOpenAI:
		return DressStatusStitch
	case JobStatusProcessingOpenAIResponse, JobStatusUploadingResult:
		return DressStatusFitting
	case JobStatusCompleted:
		return DressStatusReveal
	case JobStatusError, JobStatusErrorPreprocessing, JobStatusGone:
		return DressStatusGone
	default:
		return DressStatusGone
	}
}

// Fields is a partial job document merged onto the stored record.
type Fields map[string]any

// Well-known job record keys.
const (
	FieldJobID       = "jobId"
	FieldStatus      = "status"
	FieldProductID   = "productId"
	FieldContentHash = "contentHash"
	FieldTimestamp   = "timestamp"
	FieldUpdatedAt   = "updatedAt"
	FieldResult      = "result"
	FieldURL         = "url"
	FieldError       = "error"
	FieldImageURL    = "imageUrl"
	FieldDuration    = "processingDuration"
)

// JobRecord is the typed view of a stored job document. Doc holds every
// merged field, including transient ones outside the typed set.
type JobRecord struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	ProductID   int       `json:"productId,omitempty"`
	ContentHash string    `json:"contentHash,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
	UpdatedAt   int64     `json:"updatedAt,omitempty"`
	Result      string    `json:"result,omitempty"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`

	Doc map[string]any `json:"-"`
}

// DecodeJobRecord builds a JobRecord from a raw JSON document.
func DecodeJobRecord(raw []byte) (*JobRecord, error) {
	var rec JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	rec.Doc = doc
	return &rec, nil
}

// MergeFields overlays patch onto base and stamps the write time. A nil
// value in patch removes the key.
func MergeFields(base map[string]any, patch Fields, now time.Time) map[string]any {
	out := make(map[string]any, len(base)+len(patch)+2)
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	ms := now.UnixMilli()
	out[FieldTimestamp] = ms
	out[FieldUpdatedAt] = ms
	return out
}
