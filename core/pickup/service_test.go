package pickup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
	inmemdb "github.com/krysselista/backend/storage/database/inmem"
)

type testEnv struct {
	svc      pickup.Service
	childSvc child.Service
	usrRepo  user.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	childSvc := child.NewService(inmemdb.NewChildRepository(db))
	return &testEnv{
		svc:      pickup.NewService(inmemdb.NewRequestRepository(db), childSvc),
		childSvc: childSvc,
		usrRepo:  inmemdb.NewUserRepository(db),
	}
}

func (env *testEnv) createUser(t *testing.T, name, email string, roles ...string) user.User {
	t.Helper()
	usr := user.User{Name: name, Email: email, Roles: roles, CreatedAt: time.Now().UTC()}
	usr.SetActive(true)
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createChild(t *testing.T, name string, guardians ...user.User) child.Child {
	t.Helper()
	ctx := context.Background()
	c, err := env.childSvc.Create(ctx, child.NewChild{Name: name})
	require.NoError(t, err)
	for _, g := range guardians {
		_, err = env.childSvc.AddGuardian(ctx, child.NewGuardianLink{ParentID: g.ID, ChildID: c.ID, Relationship: "Forelder"})
		require.NoError(t, err)
	}
	return c
}

func (env *testEnv) authorize(t *testing.T, c child.Child, name, relationship, phone string) child.AuthorizedPerson {
	t.Helper()
	ap, err := env.childSvc.AddAuthorizedPerson(context.Background(), child.NewAuthorizedPerson{
		ChildID: c.ID, Name: name, Relationship: relationship, Phone: phone,
	})
	require.NoError(t, err)
	return ap
}

func TestService_Create_SelfPickup(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	emma := env.createChild(t, "Emma Hansen", parent)

	sub := env.svc.Feed().Subscribe()
	defer sub.Close()

	r, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	require.NoError(t, err)

	assert.Equal(t, pickup.StatusPending, r.Status)
	assert.True(t, r.IsPending())
	assert.Equal(t, "Kari Hansen", r.PickupPersonName)
	assert.False(t, r.PickupPersonID.Valid)
	assert.Equal(t, parent.ID, r.ParentID)
	assert.Equal(t, "Emma Hansen", r.ChildName)

	select {
	case evt := <-sub.C:
		assert.Equal(t, pickup.EventCreated, evt.Kind)
		assert.Equal(t, r.ID, evt.Request.ID)
		assert.Equal(t, "Emma Hansen", evt.Request.ChildName)
	default:
		t.Fatal("expected a created event on the feed")
	}
}

func TestService_Create_AuthorizedPerson(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	emma := env.createChild(t, "Emma Hansen", parent)
	mormor := env.authorize(t, emma, "Mormor Anne", "Besteforelder", "987 65 432")

	r, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: mormor.ID})
	require.NoError(t, err)

	// the person's name is snapshotted, not referenced
	assert.Equal(t, "Mormor Anne", r.PickupPersonName)
	assert.Equal(t, mormor.ID, r.PickupPersonID.String)
}

func TestService_Create_Authorization(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	other := env.createUser(t, "Marius Olsen", "marius@test.no", user.RoleParent)
	employee := env.createUser(t, "Per Ansatt", "per@test.no", user.RoleEmployee)
	emma := env.createChild(t, "Emma Hansen", parent)
	lucas := env.createChild(t, "Lucas Olsen", other)
	tante := env.authorize(t, lucas, "Tante Lisa", "Tante", "456 78 901")

	// staff cannot request pickups
	_, err := env.svc.Create(ctx, employee, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	assert.Equal(t, pickup.ErrNotParent, err)

	// a parent cannot request pickup for a child they do not guard
	_, err = env.svc.Create(ctx, other, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	assert.Equal(t, pickup.ErrNotGuardian, err)

	// unknown pickup person
	_, err = env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: "nope"})
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok, "expected a validation error, got %v", err)

	// a person authorized for another child is rejected
	_, err = env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: tante.ID})
	_, ok = err.(*core.ValidationError)
	assert.True(t, ok, "expected a validation error, got %v", err)
}

func TestService_Decide(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	employee := env.createUser(t, "Per Ansatt", "per@test.no", user.RoleEmployee)
	emma := env.createChild(t, "Emma Hansen", parent)

	r, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	require.NoError(t, err)

	// parents cannot decide
	_, err = env.svc.Approve(ctx, parent, r.ID)
	assert.Equal(t, pickup.ErrNotStaff, err)

	sub := env.svc.Feed().Subscribe()
	defer sub.Close()

	approved, err := env.svc.Approve(ctx, employee, r.ID)
	require.NoError(t, err)
	assert.Equal(t, pickup.StatusApproved, approved.Status)
	assert.Equal(t, employee.ID, approved.ApprovedBy.String)
	assert.True(t, approved.ApprovedAt.Valid)

	select {
	case evt := <-sub.C:
		assert.Equal(t, pickup.EventUpdated, evt.Kind)
		assert.Equal(t, pickup.StatusApproved, evt.Request.Status)
	default:
		t.Fatal("expected an updated event on the feed")
	}

	// a decided request cannot be decided again
	_, err = env.svc.Reject(ctx, employee, r.ID)
	assert.Equal(t, pickup.ErrNotPending, err)
	_, err = env.svc.Approve(ctx, employee, r.ID)
	assert.Equal(t, pickup.ErrNotPending, err)

	// unknown request
	_, err = env.svc.Approve(ctx, employee, "nope")
	assert.Equal(t, pickup.ErrNotFound, err)
}

func TestService_ConcurrentDecisionHasOneWinner(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	emma := env.createChild(t, "Emma Hansen", parent)

	r, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	require.NoError(t, err)

	const deciders = 10
	var wg sync.WaitGroup
	errs := make(chan error, deciders)

	for i := 0; i < deciders; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			staff := user.User{ID: "staff", Roles: []string{user.RoleEmployee}}
			var err error
			if i%2 == 0 {
				_, err = env.svc.Approve(ctx, staff, r.ID)
			} else {
				_, err = env.svc.Reject(ctx, staff, r.ID)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch err {
		case nil:
			wins++
		case pickup.ErrNotPending:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, deciders-1, conflicts)
}

func TestService_PendingNewestFirst(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	employee := env.createUser(t, "Per Ansatt", "per@test.no", user.RoleEmployee)
	emma := env.createChild(t, "Emma Hansen", parent)
	lucas := env.createChild(t, "Lucas Olsen", parent)

	first, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: lucas.ID, PickupPersonID: child.SelfPickupID})
	require.NoError(t, err)

	// parents cannot read the dashboard
	_, err = env.svc.Pending(ctx, parent)
	assert.Equal(t, pickup.ErrNotStaff, err)

	pending, err := env.svc.Pending(ctx, employee)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)
}

func TestService_ApprovedAndLastApproved(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	parent := env.createUser(t, "Kari Hansen", "kari@test.no", user.RoleParent)
	other := env.createUser(t, "Marius Olsen", "marius@test.no", user.RoleParent)
	employee := env.createUser(t, "Per Ansatt", "per@test.no", user.RoleEmployee)
	emma := env.createChild(t, "Emma Hansen", parent)

	var lastID string
	for i := 0; i < 3; i++ {
		r, err := env.svc.Create(ctx, parent, pickup.NewRequest{ChildID: emma.ID, PickupPersonID: child.SelfPickupID})
		require.NoError(t, err)
		_, err = env.svc.Approve(ctx, employee, r.ID)
		require.NoError(t, err)
		lastID = r.ID
		time.Sleep(5 * time.Millisecond)
	}

	approved, err := env.svc.Approved(ctx, employee, 2)
	require.NoError(t, err)
	require.Len(t, approved, 2)
	assert.Equal(t, lastID, approved[0].ID)

	// guardians may look up their own child's last approved pickup
	last, err := env.svc.LastApproved(ctx, parent, emma.ID)
	require.NoError(t, err)
	assert.Equal(t, lastID, last.ID)

	// other parents may not
	_, err = env.svc.LastApproved(ctx, other, emma.ID)
	assert.Equal(t, pickup.ErrNotGuardian, err)

	// staff always may
	last, err = env.svc.LastApproved(ctx, employee, emma.ID)
	require.NoError(t, err)
	assert.Equal(t, lastID, last.ID)
}
