package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
	emailsvc "github.com/krysselista/backend/services/email"
	inmemdb "github.com/krysselista/backend/storage/database/inmem"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) {}
func (l testLogger) Info(msg string, args ...interface{})  {}
func (l testLogger) Warn(msg string, args ...interface{})  {}
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

type testAPI struct {
	server   Server
	usrSvc   user.Service
	childSvc child.Service
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	usrSvc := user.NewServiceMock(inmemdb.NewUserRepository(db), emailsvc.NewConsoleServiceMock())
	childSvc := child.NewService(inmemdb.NewChildRepository(db))
	pickupSvc := pickup.NewService(inmemdb.NewRequestRepository(db), childSvc)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	server := NewServer(&Options{
		Addr:           ":0",
		DisableReqLogs: true,
		Logger:         testLogger{t: t},
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		ChildSvc:       childSvc,
		PickupSvc:      pickupSvc,
	})
	return &testAPI{server: server, usrSvc: usrSvc, childSvc: childSvc}
}

func (api *testAPI) createUser(t *testing.T, name, email, pwd string, roles ...string) user.User {
	t.Helper()
	usr, err := api.usrSvc.Create(context.Background(), user.NewUser{
		Name: name, Email: email, Password: pwd, PasswordConfirm: pwd, Roles: roles,
	})
	require.NoError(t, err)
	return usr
}

func (api *testAPI) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err)
	return token
}

func (api *testAPI) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestAPI_Signup(t *testing.T) {
	api := setupAPI(t)

	body := map[string]interface{}{
		"name":             "Kari Hansen",
		"email":            "kari@test.no",
		"password":         "Sommerfugl77!",
		"password_confirm": "Sommerfugl77!",
		"roles":            []string{user.RoleParent},
	}
	rec := api.request(t, http.MethodPost, "/v1/users/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SignupResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "kari@test.no", resp.User.Email)
	assert.Equal(t, []string{user.RoleParent}, resp.User.Roles)

	// duplicate email
	rec = api.request(t, http.MethodPost, "/v1/users/signup", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// invalid role
	body["email"] = "ny@test.no"
	body["roles"] = []string{"superuser"}
	rec = api.request(t, http.MethodPost, "/v1/users/signup", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestAPI_Login(t *testing.T) {
	api := setupAPI(t)
	api.createUser(t, "Kari Hansen", "kari@test.no", "Sommerfugl77!", user.RoleParent)

	rec := api.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": "kari@test.no", "password": "Sommerfugl77!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	rec = api.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": "kari@test.no", "password": "feil",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestAPI_UserAdminGating(t *testing.T) {
	api := setupAPI(t)
	parent := api.createUser(t, "Kari Hansen", "kari@test.no", "Sommerfugl77!", user.RoleParent)
	admin := api.createUser(t, "Anne Admin", "anne@test.no", "Sommerfugl77!", user.RoleAdmin)

	// listing users is admin-only
	rec := api.request(t, http.MethodGet, "/v1/users", api.getToken(t, parent), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodGet, "/v1/users", api.getToken(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []user.User
	decode(t, rec, &users)
	assert.Len(t, users, 2)

	// unauthenticated
	rec = api.request(t, http.MethodGet, "/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestAPI_PickupFlow(t *testing.T) {
	api := setupAPI(t)
	ctx := context.Background()
	parent := api.createUser(t, "Kari Hansen", "kari@test.no", "Sommerfugl77!", user.RoleParent)
	employee := api.createUser(t, "Per Ansatt", "per@test.no", "Sommerfugl77!", user.RoleEmployee)

	emma, err := api.childSvc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)
	_, err = api.childSvc.AddGuardian(ctx, child.NewGuardianLink{ParentID: parent.ID, ChildID: emma.ID, Relationship: "Forelder"})
	require.NoError(t, err)

	parentToken := api.getToken(t, parent)
	staffToken := api.getToken(t, employee)

	// parent requests a self pickup
	rec := api.request(t, http.MethodPost, "/v1/pickups", parentToken, map[string]string{
		"child_id": emma.ID, "pickup_person_id": child.SelfPickupID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r pickup.Request
	decode(t, rec, &r)
	assert.Equal(t, pickup.StatusPending, r.Status)
	assert.Equal(t, "Kari Hansen", r.PickupPersonName)

	// staff cannot create requests
	rec = api.request(t, http.MethodPost, "/v1/pickups", staffToken, map[string]string{
		"child_id": emma.ID, "pickup_person_id": child.SelfPickupID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// the pending dashboard is staff-only
	rec = api.request(t, http.MethodGet, "/v1/pickups/pending", parentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodGet, "/v1/pickups/pending", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pending []pickup.Request
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, "Emma Hansen", pending[0].ChildName)

	// approve
	rec = api.request(t, http.MethodPost, "/v1/pickups/"+r.ID+"/approve", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved pickup.Request
	decode(t, rec, &approved)
	assert.Equal(t, pickup.StatusApproved, approved.Status)
	assert.Equal(t, employee.ID, approved.ApprovedBy.String)

	// a second decision conflicts
	rec = api.request(t, http.MethodPost, "/v1/pickups/"+r.ID+"/reject", staffToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// last approved is visible to the guardian
	rec = api.request(t, http.MethodGet, "/v1/pickups/approved/last?child_id="+emma.ID, parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var last pickup.Request
	decode(t, rec, &last)
	assert.Equal(t, r.ID, last.ID)
}

func TestAPI_PickupOptions(t *testing.T) {
	api := setupAPI(t)
	ctx := context.Background()
	parent := api.createUser(t, "Kari Hansen", "kari@test.no", "Sommerfugl77!", user.RoleParent)

	emma, err := api.childSvc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)
	_, err = api.childSvc.AddGuardian(ctx, child.NewGuardianLink{ParentID: parent.ID, ChildID: emma.ID, Relationship: "Forelder"})
	require.NoError(t, err)
	_, err = api.childSvc.AddAuthorizedPerson(ctx, child.NewAuthorizedPerson{
		ChildID: emma.ID, Name: "Mormor Anne", Relationship: "Besteforelder", Phone: "987 65 432",
	})
	require.NoError(t, err)

	rec := api.request(t, http.MethodGet, fmt.Sprintf("/v1/children/%s/pickup-options", emma.ID), api.getToken(t, parent), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var options []child.PickupOption
	decode(t, rec, &options)
	require.Len(t, options, 2)
	assert.Equal(t, child.SelfPickupID, options[0].ID)
	assert.Equal(t, "Kari Hansen", options[0].Name)
	assert.Equal(t, "Mormor Anne", options[1].Name)
}

func TestAPI_ChildrenAdminGating(t *testing.T) {
	api := setupAPI(t)
	parent := api.createUser(t, "Kari Hansen", "kari@test.no", "Sommerfugl77!", user.RoleParent)
	admin := api.createUser(t, "Anne Admin", "anne@test.no", "Sommerfugl77!", user.RoleAdmin)

	rec := api.request(t, http.MethodPost, "/v1/children", api.getToken(t, parent), map[string]string{"name": "Emma Hansen"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodPost, "/v1/children", api.getToken(t, admin), map[string]string{"name": "Emma Hansen"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c child.Child
	decode(t, rec, &c)
	assert.Equal(t, "Emma Hansen", c.Name)

	// link the parent and check the parent's own children listing
	rec = api.request(t, http.MethodPost, "/v1/children/guardians", api.getToken(t, admin), map[string]interface{}{
		"parent_id": parent.ID, "child_id": c.ID, "is_primary": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodGet, "/v1/children/mine", api.getToken(t, parent), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine []child.Child
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)
}
