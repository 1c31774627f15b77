package tryon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
)

const (
	MaxStatusBatch     = 50
	statusReadParallel = 10
)

// StatusView is the client-facing view of one job: the stored document with
// status and dressStatus set.
type StatusView struct {
	Status      domain.JobStatus
	DressStatus domain.DressStatus
	Fields      map[string]any
}

func (v StatusView) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Fields)+2)
	for k, val := range v.Fields {
		out[k] = val
	}
	out["status"] = v.Status
	out["dressStatus"] = v.DressStatus
	return json.Marshal(out)
}

func (v *StatusView) UnmarshalJSON(data []byte) error {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	status, _ := fields["status"].(string)
	dress, _ := fields["dressStatus"].(string)
	delete(fields, "status")
	delete(fields, "dressStatus")
	v.Status = domain.JobStatus(status)
	v.DressStatus = domain.DressStatus(dress)
	v.Fields = fields
	return nil
}

// ImageURL returns the result URL when the job completed.
func (v StatusView) ImageURL() string {
	if u, ok := v.Fields[domain.FieldURL].(string); ok {
		return u
	}
	return ""
}

// GoneView is returned for ids with no job record.
func GoneView() StatusView {
	return StatusView{Status: domain.JobStatusGone, DressStatus: domain.DressStatusGone}
}

func viewOf(rec *domain.JobRecord) StatusView {
	fields := make(map[string]any, len(rec.Doc))
	for k, v := range rec.Doc {
		if k == "status" || k == "dressStatus" {
			continue
		}
		fields[k] = v
	}
	return StatusView{Status: rec.Status, DressStatus: rec.Status.DressStatus(), Fields: fields}
}

// StatusService answers batch status queries. It only reads.
type StatusService struct {
	jobs domain.JobRepository
}

func NewStatusService(jobs domain.JobRepository) *StatusService {
	return &StatusService{jobs: jobs}
}

// CheckStatuses returns one view per distinct non-empty id.
func (s *StatusService) CheckStatuses(ctx context.Context, jobIDs []string) (map[string]StatusView, error) {
	ids := dedupeIDs(jobIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: jobIds is empty", domain.ErrInvalidRequest)
	}
	if len(ids) > MaxStatusBatch {
		return nil, fmt.Errorf("%w: at most %d jobIds per request", domain.ErrInvalidRequest, MaxStatusBatch)
	}

	out := make(map[string]StatusView, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusReadParallel)
	for _, id := range ids {
		g.Go(func() error {
			view := GoneView()
			rec, err := s.jobs.Get(gctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
			case err != nil:
				return fmt.Errorf("%w: read job %s: %v", domain.ErrUpstream, id, err)
			default:
				view = viewOf(rec)
			}
			mu.Lock()
			out[id] = view
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
