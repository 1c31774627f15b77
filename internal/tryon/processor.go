package tryon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/imagecodec"
	"storefront/internal/imagegen"
	"storefront/internal/observability"
	"storefront/internal/storage"
)

// Messages recorded on failed jobs.
const (
	MsgProductNotFound      = "Product not found"
	MsgProductMissingImages = "Product missing required images"
	MsgNoImageData          = "OpenAI returned no image data"
)

// Result is the outcome of one processor run.
type Result struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ProcessorOptions struct {
	Jobs     domain.JobRepository
	Products domain.ProductRepository
	Fetcher  Fetcher
	Editor   imagegen.Editor
	Uploader storage.Uploader
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
	Sink     observability.Sink
	Now      func() time.Time
}

// Processor composites the user photo with the product's reference images.
type Processor struct {
	jobs     domain.JobRepository
	products domain.ProductRepository
	fetcher  Fetcher
	editor   imagegen.Editor
	uploader storage.Uploader
	logger   zerolog.Logger
	metrics  *observability.Metrics
	sink     observability.Sink
	now      func() time.Time
}

func NewProcessor(opts ProcessorOptions) *Processor {
	p := &Processor{
		jobs:     opts.Jobs,
		products: opts.Products,
		fetcher:  opts.Fetcher,
		editor:   opts.Editor,
		uploader: opts.Uploader,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		sink:     opts.Sink,
		now:      opts.Now,
	}
	if p.fetcher == nil {
		p.fetcher = NewHTTPFetcher(0)
	}
	if p.sink == nil {
		p.sink = observability.NopSink{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Handle adapts the processor to an event handler. Job failures are recorded
// on the job and never reported to the transport.
func (p *Processor) Handle(ctx context.Context, ev events.ImageProcess) error {
	p.Process(ctx, ev)
	return nil
}

// Process runs the pipeline for one event. It never panics and never returns
// an error; failures end in status=error.
func (p *Processor) Process(ctx context.Context, ev events.ImageProcess) (res Result) {
	start := p.now()
	jobID := ev.JobID
	log := p.logger.With().Str("job_id", jobID).Int("product_id", ev.ProductID).Logger()

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, log, jobID, fmt.Errorf("%w: panic: %v", domain.ErrProcessing, r))
		}
		if p.metrics != nil {
			p.metrics.ProcessingDuration.Observe(p.now().Sub(start).Seconds())
		}
	}()

	url, err := p.run(ctx, log, ev, start)
	if err != nil {
		return p.fail(ctx, log, jobID, err)
	}
	if p.metrics != nil {
		p.metrics.JobsProcessed.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	}
	log.Info().Str("url", url).Dur("elapsed", p.now().Sub(start)).Msg("tryon: job completed")
	return Result{Success: true, JobID: jobID, URL: url}
}

func (p *Processor) run(ctx context.Context, log zerolog.Logger, ev events.ImageProcess, start time.Time) (string, error) {
	jobID := ev.JobID
	p.setStatus(ctx, log, jobID, domain.JobStatusProcessingStarted, domain.Fields{
		domain.FieldImageURL:  ev.ImageURL,
		domain.FieldProductID: ev.ProductID,
		domain.FieldURL:       nil,
		domain.FieldResult:    nil,
		domain.FieldDuration:  nil,
		domain.FieldError:     nil,
	})

	product, err := p.products.Find(ctx, ev.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", errors.New(MsgProductNotFound)
		}
		return "", fmt.Errorf("load product: %w", err)
	}
	frontURL, backURL, ok := product.ReferenceImages()
	if !ok {
		return "", errors.New(MsgProductMissingImages)
	}

	p.setStatus(ctx, log, jobID, domain.JobStatusDownloadingImages, nil)
	var front, back, user []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		front, _, err = p.fetcher.Fetch(gctx, frontURL)
		return err
	})
	g.Go(func() (err error) {
		back, _, err = p.fetcher.Fetch(gctx, backURL)
		return err
	})
	g.Go(func() (err error) {
		user, _, err = p.fetcher.Fetch(gctx, ev.ImageURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("download images: %w", err)
	}

	p.setStatus(ctx, log, jobID, domain.JobStatusProcessingImages, nil)
	userPNG, err := imagecodec.EnsurePNG(user)
	if err != nil {
		return "", fmt.Errorf("convert user image: %w", err)
	}

	p.setStatus(ctx, log, jobID, domain.JobStatusCallingOpenAI, nil)
	callStart := p.now()
	resp, err := p.editor.Edit(ctx, imagegen.EditRequest{
		Images: []imagegen.SourceImage{
			{Data: front, MIMEType: imagecodec.DetectContentType(front), Name: "front." + storage.ExtensionForMIME(imagecodec.DetectContentType(front))},
			{Data: back, MIMEType: imagecodec.DetectContentType(back), Name: "back." + storage.ExtensionForMIME(imagecodec.DetectContentType(back))},
			{Data: userPNG, MIMEType: "image/png", Name: "person.png"},
		},
		Prompt: imagegen.BuildTryOnInstruction(product.Name, product.Category),
		Size:   imagegen.SizeSquare,
	})
	if err != nil {
		return "", fmt.Errorf("%w: image edit: %v", domain.ErrUpstream, err)
	}

	p.setStatus(ctx, log, jobID, domain.JobStatusProcessingOpenAIResponse, domain.Fields{
		"openaiDuration": p.now().Sub(callStart).Milliseconds(),
	})
	if resp == nil || len(resp.Data) == 0 {
		return "", errors.New(MsgNoImageData)
	}
	var result []byte
	switch first := resp.Data[0]; {
	case first.B64JSON != "":
		result, err = base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return "", fmt.Errorf("decode image data: %w", err)
		}
	case first.URL != "":
		result, _, err = p.fetcher.Fetch(ctx, first.URL)
		if err != nil {
			return "", fmt.Errorf("download result: %w", err)
		}
	default:
		return "", errors.New(MsgNoImageData)
	}

	p.setStatus(ctx, log, jobID, domain.JobStatusUploadingResult, nil)
	contentType := imagecodec.DetectContentType(result)
	url, err := p.uploader.Upload(ctx, storage.UploadKey("results", jobID, storage.ExtensionForMIME(contentType)), result, contentType)
	if err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}

	p.setStatus(context.WithoutCancel(ctx), log, jobID, domain.JobStatusCompleted, domain.Fields{
		domain.FieldURL:      url,
		domain.FieldResult:   url,
		domain.FieldDuration: p.now().Sub(start).Milliseconds(),
		domain.FieldError:    nil,
	})
	return url, nil
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, jobID string, err error) Result {
	msg := err.Error()
	log.Error().Err(err).Msg("tryon: job failed")
	p.setStatus(context.WithoutCancel(ctx), log, jobID, domain.JobStatusError, domain.Fields{
		domain.FieldError:    msg,
		domain.FieldURL:      nil,
		domain.FieldResult:   nil,
		domain.FieldDuration: nil,
	})
	if p.metrics != nil {
		p.metrics.JobsProcessed.WithLabelValues(string(domain.JobStatusError)).Inc()
	}
	p.sink.Emit(observability.Event{
		Name:   observability.EventJobFailed,
		Fields: map[string]any{"jobId": jobID, "error": msg},
	})
	return Result{Success: false, JobID: jobID, Error: msg}
}

func (p *Processor) setStatus(ctx context.Context, log zerolog.Logger, jobID string, status domain.JobStatus, extra domain.Fields) {
	fields := domain.Fields{domain.FieldStatus: status}
	for k, v := range extra {
		fields[k] = v
	}
	if err := p.jobs.Set(ctx, jobID, fields, false); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("tryon: job store write failed")
	}
}
