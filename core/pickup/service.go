package pickup

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/user"
)

// DefaultApprovedLimit is how many recent approved pickups a listing returns.
const DefaultApprovedLimit = 10

var (
	// errors
	ErrNotFound = errors.New("pickup request not found")
	// ErrNotPending signals a lost decision race: the request was already
	// approved or rejected by another staff member.
	ErrNotPending  = errors.New("pickup request already processed")
	ErrNotGuardian = errors.New("user is not a guardian of this child")
	ErrNotParent   = errors.New("user does not hold the parent role")
	ErrNotStaff    = errors.New("user does not hold the employee or admin role")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, r Request, exec ...core.DBExecutor) (Request, error)
		GetRequestByID(ctx context.Context, id string, exec ...core.DBExecutor) (Request, error)
		QueryPending(ctx context.Context, exec ...core.DBExecutor) ([]Request, error)
		QueryApproved(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Request, error)
		LastApproved(ctx context.Context, childID string, exec ...core.DBExecutor) (Request, error)
		// TransitionRequest performs the conditional update
		// "set status if still pending"; it returns ErrNotPending when the
		// request exists but was already decided.
		TransitionRequest(ctx context.Context, id string, to Status, approverID string, at time.Time, exec ...core.DBExecutor) (Request, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nr NewRequest) (Request, error)
		Approve(ctx context.Context, actor user.User, requestID string) (Request, error)
		Reject(ctx context.Context, actor user.User, requestID string) (Request, error)
		Pending(ctx context.Context, actor user.User) ([]Request, error)
		Approved(ctx context.Context, actor user.User, limit int) ([]Request, error)
		LastApproved(ctx context.Context, actor user.User, childID string) (Request, error)
		Feed() *Feed
	}

	service struct {
		repo     Repository
		childSvc child.Service
		feed     *Feed
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, childSvc child.Service) Service {
	return &service{
		repo:     repo,
		childSvc: childSvc,
		feed:     NewFeed(),
	}
}

func (svc *service) Feed() *Feed { return svc.feed }

func (svc *service) Create(ctx context.Context, actor user.User, nr NewRequest) (Request, error) {
	if !actor.IsParent() {
		return Request{}, ErrNotParent
	}
	isGuardian, err := svc.childSvc.IsGuardian(ctx, actor.ID, nr.ChildID)
	if err != nil {
		return Request{}, errors.Wrap(err, "checking guardian link")
	}
	if !isGuardian {
		return Request{}, ErrNotGuardian
	}

	r := Request{
		ChildID:     nr.ChildID,
		ParentID:    actor.ID,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}

	// snapshot the pickup person's display name at request time
	if nr.PickupPersonID == child.SelfPickupID {
		r.PickupPersonName = actor.Name
	} else {
		person, err := svc.childSvc.GetAuthorizedPerson(ctx, nr.PickupPersonID)
		if err != nil {
			if errors.Cause(err) == child.ErrPersonNotFound {
				return Request{}, core.NewValidationError(err, core.FieldError{Field: "pickup_person_id", Error: "hentepersonen ble ikke funnet"})
			}
			return Request{}, errors.Wrap(err, "resolving pickup person")
		}
		if person.ChildID != nr.ChildID {
			return Request{}, core.NewValidationError(
				errors.New("pickup person is not authorized for this child"),
				core.FieldError{Field: "pickup_person_id", Error: "hentepersonen er ikke registrert for dette barnet"},
			)
		}
		r.PickupPersonName = person.Name
		r.PickupPersonID = null.StringFrom(person.ID)
	}

	created, err := svc.repo.CreateRequest(ctx, r)
	if err != nil {
		return Request{}, errors.Wrap(err, "creating pickup request")
	}

	svc.publish(ctx, EventCreated, created)
	return created, nil
}

func (svc *service) Approve(ctx context.Context, actor user.User, requestID string) (Request, error) {
	return svc.decide(ctx, actor, requestID, StatusApproved)
}

func (svc *service) Reject(ctx context.Context, actor user.User, requestID string) (Request, error) {
	return svc.decide(ctx, actor, requestID, StatusRejected)
}

func (svc *service) decide(ctx context.Context, actor user.User, requestID string, to Status) (Request, error) {
	if !actor.IsStaff() {
		return Request{}, ErrNotStaff
	}
	r, err := svc.repo.TransitionRequest(ctx, requestID, to, actor.ID, time.Now().UTC())
	if err != nil {
		return Request{}, err
	}

	svc.publish(ctx, EventUpdated, r)
	return r, nil
}

func (svc *service) Pending(ctx context.Context, actor user.User) ([]Request, error) {
	if !actor.IsStaff() {
		return nil, ErrNotStaff
	}
	return svc.repo.QueryPending(ctx)
}

func (svc *service) Approved(ctx context.Context, actor user.User, limit int) ([]Request, error) {
	if !actor.IsStaff() {
		return nil, ErrNotStaff
	}
	if limit <= 0 {
		limit = DefaultApprovedLimit
	}
	return svc.repo.QueryApproved(ctx, limit)
}

func (svc *service) LastApproved(ctx context.Context, actor user.User, childID string) (Request, error) {
	if !actor.IsStaff() {
		isGuardian, err := svc.childSvc.IsGuardian(ctx, actor.ID, childID)
		if err != nil {
			return Request{}, errors.Wrap(err, "checking guardian link")
		}
		if !isGuardian {
			return Request{}, ErrNotGuardian
		}
	}
	return svc.repo.LastApproved(ctx, childID)
}

// publish re-resolves the child's display name before fanning out so
// subscribers render from authoritative state, not the mutation payload.
func (svc *service) publish(ctx context.Context, kind EventKind, r Request) {
	if r.ChildName == "" {
		if c, err := svc.childSvc.GetByID(ctx, r.ChildID); err == nil {
			r.ChildName = c.Name
			r.ChildPhotoURL = c.PhotoURL
		}
	}
	svc.feed.Publish(Event{Kind: kind, Request: r})
}
