package tryon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/imagecodec"
	"storefront/internal/observability"
	"storefront/internal/storage"
)

// SubmitRequest is a decoded submission. ContentHash is the client's MD5 of
// the original upload and may be empty.
type SubmitRequest struct {
	Image       []byte `validate:"required"`
	ContentHash string `validate:"omitempty,alphanum,max=64"`
	ProductID   int    `validate:"required,gt=0"`
}

type SubmitterOptions struct {
	Jobs       domain.JobRepository
	Uploader   storage.Uploader
	Dispatcher events.Dispatcher
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
	Validate   *validator.Validate

	EnvTag       string
	MaxBytes     int
	MaxDimension int
}

// Submitter accepts try-on requests, prepares the user image and hands the
// job to the background processor.
type Submitter struct {
	jobs       domain.JobRepository
	uploader   storage.Uploader
	dispatcher events.Dispatcher
	logger     zerolog.Logger
	metrics    *observability.Metrics
	validate   *validator.Validate

	envTag       string
	maxBytes     int
	maxDimension int

	group singleflight.Group
}

func NewSubmitter(opts SubmitterOptions) *Submitter {
	s := &Submitter{
		jobs:         opts.Jobs,
		uploader:     opts.Uploader,
		dispatcher:   opts.Dispatcher,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		validate:     opts.Validate,
		envTag:       opts.EnvTag,
		maxBytes:     opts.MaxBytes,
		maxDimension: opts.MaxDimension,
	}
	if s.validate == nil {
		s.validate = validator.New()
	}
	if s.envTag == "" {
		s.envTag = "d"
	}
	if s.maxDimension <= 0 {
		s.maxDimension = 1024
	}
	return s
}

// Submit returns the job id once the image is uploaded and the processing
// event dispatched. Pipeline failures are recorded on the job record; only
// invalid input is returned as an error. Identical concurrent submissions
// share one execution.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if s.maxBytes > 0 && len(req.Image) > s.maxBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidRequest, s.maxBytes)
	}

	hash := resolveContentHash(req.ContentHash, req.Image)
	jobID := JobID(s.envTag, hash, req.ProductID)

	runCtx := context.WithoutCancel(ctx)
	_, _, shared := s.group.Do(jobID, func() (any, error) {
		s.run(runCtx, jobID, hash, req)
		return nil, nil
	})
	if shared {
		s.logger.Debug().Str("job_id", jobID).Msg("tryon: submission coalesced")
	}
	return jobID, nil
}

func (s *Submitter) run(ctx context.Context, jobID, hash string, req SubmitRequest) {
	start := time.Now()
	log := s.logger.With().Str("job_id", jobID).Int("product_id", req.ProductID).Logger()

	s.write(ctx, jobID, domain.Fields{
		domain.FieldJobID:       jobID,
		domain.FieldStatus:      domain.JobStatusInitialized,
		domain.FieldProductID:   req.ProductID,
		domain.FieldContentHash: hash,
		domain.FieldError:       nil,
		domain.FieldURL:         nil,
		domain.FieldResult:      nil,
		domain.FieldDuration:    nil,
	})

	s.setStatus(ctx, jobID, domain.JobStatusPreprocessingImage, nil)
	img, err := imagecodec.Normalize(req.Image, s.maxDimension)
	if err != nil {
		s.fail(ctx, log, jobID, "preprocess image", err)
		return
	}

	s.setStatus(ctx, jobID, domain.JobStatusUploadingImage, domain.Fields{
		"originalSize":  len(req.Image),
		"processedSize": len(img.Data),
		"imageWidth":    img.Width,
		"imageHeight":   img.Height,
	})
	key := storage.UploadKey("uploads", jobID, storage.ExtensionForMIME(img.ContentType))
	imageURL, err := s.uploader.Upload(ctx, key, img.Data, img.ContentType)
	if err != nil {
		s.fail(ctx, log, jobID, "upload image", err)
		return
	}

	s.setStatus(ctx, jobID, domain.JobStatusDispatching, domain.Fields{domain.FieldImageURL: imageURL})
	err = s.dispatcher.Dispatch(ctx, events.ImageProcess{
		ImageURL:  imageURL,
		ImgMD5:    hash,
		ProductID: req.ProductID,
		JobID:     jobID,
	})
	if err != nil {
		s.fail(ctx, log, jobID, "dispatch", err)
		return
	}

	s.setStatus(ctx, jobID, domain.JobStatusQueued, nil)
	s.count("queued")
	log.Info().Dur("elapsed", time.Since(start)).Msg("tryon: job queued")
}

func (s *Submitter) fail(ctx context.Context, log zerolog.Logger, jobID, step string, err error) {
	err = fmt.Errorf("%s: %w", step, errors.Join(domain.ErrPreprocessing, err))
	log.Error().Err(err).Msg("tryon: submission failed")
	s.setStatus(ctx, jobID, domain.JobStatusErrorPreprocessing, domain.Fields{domain.FieldError: err.Error()})
	s.count(string(domain.JobStatusErrorPreprocessing))
}

func (s *Submitter) setStatus(ctx context.Context, jobID string, status domain.JobStatus, extra domain.Fields) {
	fields := domain.Fields{domain.FieldStatus: status}
	for k, v := range extra {
		fields[k] = v
	}
	s.write(ctx, jobID, fields)
}

// write never fails the submission; store errors are only logged.
func (s *Submitter) write(ctx context.Context, jobID string, fields domain.Fields) {
	if err := s.jobs.Set(ctx, jobID, fields, false); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Interface("status", fields[domain.FieldStatus]).Msg("tryon: job store write failed")
	}
}

func (s *Submitter) count(outcome string) {
	if s.metrics != nil {
		s.metrics.JobsSubmitted.WithLabelValues(outcome).Inc()
	}
}
