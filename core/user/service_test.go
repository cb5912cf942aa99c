package user

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krysselista/backend/core"
)

// repoMock is a minimal in-package fake; the full-featured in-memory
// repository lives in storage/database/inmem.
type repoMock struct {
	Repository
	users map[string]User
	seq   int
}

func newRepoMock() *repoMock {
	return &repoMock{users: make(map[string]User)}
}

func (m *repoMock) CheckEmailUniqueness(ctx context.Context, email string, excl []User, exec ...core.DBExecutor) error {
	for _, usr := range m.users {
		if usr.Email != email {
			continue
		}
		var excluded bool
		for _, ex := range excl {
			if ex.ID == usr.ID {
				excluded = true
			}
		}
		if !excluded {
			return ErrEmailExists
		}
	}
	return nil
}

func (m *repoMock) CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error) {
	m.seq++
	usr.ID = strings.Repeat("0", 35) + string(rune('0'+m.seq))
	m.users[usr.ID] = usr
	return usr, nil
}

func (m *repoMock) GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error) {
	if usr, ok := m.users[filter.ID]; ok {
		return usr, nil
	}
	for _, usr := range m.users {
		if filter.Email != "" && usr.Email == filter.Email {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *repoMock) UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error) {
	orig, ok := m.users[usr.ID]
	if !ok {
		return User{}, ErrNotFound
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if !usr.UpdatedAt.IsZero() {
		orig.UpdatedAt = usr.UpdatedAt
	}
	m.users[usr.ID] = orig
	return orig, nil
}

type mailMock struct {
	sent []*core.EmailMessage
}

func (m *mailMock) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

func TestService_Create_Defaults(t *testing.T) {
	repo := newRepoMock()
	svc := NewService(repo, &mailMock{})

	usr, err := svc.Create(context.Background(), NewUser{
		Name:     "Kari Hansen",
		Email:    "kari@test.no",
		Password: "godt passord? nei",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{RoleParent}, usr.Roles, "role defaults to parent")
	require.NotNil(t, usr.IsActive)
	assert.True(t, *usr.IsActive)
	assert.NoError(t, usr.CheckPassword("godt passord? nei"))
	assert.Error(t, usr.CheckPassword("feil"))
	assert.True(t, usr.IsParent())
	assert.False(t, usr.IsStaff())
}

func TestService_CheckUniqueness(t *testing.T) {
	repo := newRepoMock()
	svc := NewService(repo, &mailMock{})
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Name: "Kari", Email: "kari@test.no", Password: "x"})
	require.NoError(t, err)

	err = svc.CheckUniqueness(ctx, "kari@test.no")
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "expected a validation error, got %v", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "email", vErr.Fields[0].Field)

	// the user themself is excluded on update
	assert.NoError(t, svc.CheckUniqueness(ctx, "kari@test.no", usr))
}

func TestService_PasswordResetFlow(t *testing.T) {
	repo := newRepoMock()
	mail := &mailMock{}
	svc := NewServiceMock(repo, mail)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Name: "Kari Hansen", Email: "kari@test.no", Password: "gammelt"})
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "kari@test.no"))
	require.Len(t, mail.sent, 1)
	msg := mail.sent[0]
	assert.Equal(t, "Tilbakestill passord", msg.Subject)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "kari@test.no", msg.To[0].Address)

	data := msg.TemplateData.(struct {
		User  User
		UID   string
		Token string
	})

	err = svc.ResetPassword(ctx, ResetUserPassword{
		UID:             data.UID,
		Token:           data.Token,
		Password:        "nytt passord",
		PasswordConfirm: "nytt passord",
	})
	require.NoError(t, err)

	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("nytt passord"))

	// the token is single-use: it is bound to the old password hash
	err = svc.ResetPassword(ctx, ResetUserPassword{
		UID:             data.UID,
		Token:           data.Token,
		Password:        "enda nyere",
		PasswordConfirm: "enda nyere",
	})
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok, "expected a validation error, got %v", err)

	// unknown user
	assert.Equal(t, ErrNotFound, svc.RequestPasswordReset(ctx, "nope@test.no"))
}
