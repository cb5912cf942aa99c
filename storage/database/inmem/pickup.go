package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/pickup"
)

type requestRepository struct {
	db *DB
}

var _ pickup.Repository = (*requestRepository)(nil)

func NewRequestRepository(db *DB) pickup.Repository {
	return &requestRepository{db: db}
}

// decorate joins the display names the way the SQL repository does.
// caller must hold at least a read lock.
func (repo *requestRepository) decorate(r pickup.Request) pickup.Request {
	if c, ok := repo.db.children[r.ChildID]; ok {
		r.ChildName = c.Name
		r.ChildPhotoURL = c.PhotoURL
	}
	if parent, ok := repo.db.users[r.ParentID]; ok {
		r.ParentName = parent.Name
	}
	return r
}

func (repo *requestRepository) CreateRequest(ctx context.Context, r pickup.Request, exec ...core.DBExecutor) (pickup.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r.ID = uuid.New().String()
	stored := r
	repo.db.requests[r.ID] = &stored
	return repo.decorate(r), nil
}

func (repo *requestRepository) GetRequestByID(ctx context.Context, id string, exec ...core.DBExecutor) (pickup.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.requests[id]; ok {
		return repo.decorate(*r), nil
	}
	return pickup.Request{}, pickup.ErrNotFound
}

func (repo *requestRepository) QueryPending(ctx context.Context, exec ...core.DBExecutor) ([]pickup.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var reqs []pickup.Request
	for _, r := range repo.db.requests {
		if r.Status == pickup.StatusPending {
			reqs = append(reqs, repo.decorate(*r))
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.After(reqs[j].RequestedAt) })
	return reqs, nil
}

func (repo *requestRepository) QueryApproved(ctx context.Context, limit int, exec ...core.DBExecutor) ([]pickup.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var reqs []pickup.Request
	for _, r := range repo.db.requests {
		if r.Status == pickup.StatusApproved {
			reqs = append(reqs, repo.decorate(*r))
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ApprovedAt.Time.After(reqs[j].ApprovedAt.Time) })
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	return reqs, nil
}

func (repo *requestRepository) LastApproved(ctx context.Context, childID string, exec ...core.DBExecutor) (pickup.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var last *pickup.Request
	for _, r := range repo.db.requests {
		if r.ChildID != childID || r.Status != pickup.StatusApproved {
			continue
		}
		if last == nil || r.ApprovedAt.Time.After(last.ApprovedAt.Time) {
			last = r
		}
	}
	if last == nil {
		return pickup.Request{}, pickup.ErrNotFound
	}
	return repo.decorate(*last), nil
}

func (repo *requestRepository) TransitionRequest(ctx context.Context, id string, to pickup.Status, approverID string, at time.Time, exec ...core.DBExecutor) (pickup.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.requests[id]
	if !ok {
		return pickup.Request{}, pickup.ErrNotFound
	}
	// compare-and-set under the write lock: a concurrent decision race
	// has exactly one winner
	if r.Status != pickup.StatusPending {
		return pickup.Request{}, pickup.ErrNotPending
	}
	r.Status = to
	r.ApprovedBy = null.StringFrom(approverID)
	r.ApprovedAt = null.TimeFrom(at.UTC())
	return repo.decorate(*r), nil
}
