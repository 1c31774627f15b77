package tryon

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"storefront/internal/adapter/repo"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/imagegen"
)

// recordingJobs wraps the memory store and keeps the status write order per job.
type recordingJobs struct {
	*repo.MemoryJobRepository
	mu       sync.Mutex
	statuses map[string][]domain.JobStatus
	failSets bool
}

func newRecordingJobs() *recordingJobs {
	return &recordingJobs{MemoryJobRepository: repo.NewMemoryJobRepository(), statuses: map[string][]domain.JobStatus{}}
}

func (r *recordingJobs) Set(ctx context.Context, jobID string, fields domain.Fields, overwrite bool) error {
	if s, ok := fields[domain.FieldStatus].(domain.JobStatus); ok {
		r.mu.Lock()
		r.statuses[jobID] = append(r.statuses[jobID], s)
		r.mu.Unlock()
	}
	if r.failSets {
		return errors.New("store down")
	}
	return r.MemoryJobRepository.Set(ctx, jobID, fields, overwrite)
}

func (r *recordingJobs) history(jobID string) []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.JobStatus(nil), r.statuses[jobID]...)
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	uploads map[string][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploads == nil {
		u.uploads = map[string][]byte{}
	}
	u.uploads[key] = data
	return "https://cdn.test/" + key, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	err    error
	events []events.ImageProcess
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, ev events.ImageProcess) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	return nil
}

type fakeFetcher struct {
	files map[string][]byte
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	data, ok := f.files[url]
	if !ok {
		return nil, "", errors.New("404 " + url)
	}
	return data, "", nil
}

type fakeEditor struct {
	resp  *openai.ImageResponse
	err   error
	calls int
	last  imagegen.EditRequest
	panic bool
}

func (e *fakeEditor) Edit(ctx context.Context, req imagegen.EditRequest) (*openai.ImageResponse, error) {
	e.calls++
	e.last = req
	if e.panic {
		panic("editor exploded")
	}
	return e.resp, e.err
}

type fakeProducts struct {
	products map[int]domain.Product
}

func (f fakeProducts) Find(ctx context.Context, id int) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f fakeProducts) List(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	return &domain.ProductPage{}, nil
}

func testImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}
