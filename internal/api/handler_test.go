package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diet-service/internal/api"
	"diet-service/internal/events"
	"diet-service/internal/model"
	"diet-service/internal/repository"
	"diet-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	err error
}

func (f fakePresigner) PresignMealPhotoUpload(_ context.Context, mealID uuid.UUID) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "http://storage/upload/" + mealID.String(), "http://storage/meal-photos/" + mealID.String() + ".jpg", nil
}

type testServer struct {
	app   *fiber.App
	store *repository.MemoryStore
}

func newTestServer(t *testing.T, presigner api.PhotoPresigner) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	userService := service.NewUserService(store.Users(), events.NoopPublisher{})
	mealService := service.NewMealService(store.Meals(), events.NoopPublisher{})

	app := api.NewApp(api.Dependencies{
		UserHandler: api.NewUserHandler(userService, false),
		MealHandler: api.NewMealHandler(mealService, userService, presigner),
	})

	return &testServer{app: app, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, sessionID string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: api.SessionCookieName, Value: sessionID})
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

// register creates a user without a prior session and returns the issued session id.
func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/users", fiber.Map{"name": name, "email": email}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	return cookie.Value
}

func (s *testServer) createMeal(t *testing.T, sessionID, name, date string, onDiet bool) {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/meals", fiber.Map{
		"name":        name,
		"description": "description of " + name,
		"date":        date,
		"time":        "12:30",
		"is_on_diet":  onDiet,
	}, sessionID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (s *testServer) listMeals(t *testing.T, sessionID string) []model.Meal {
	t.Helper()

	resp := s.do(t, http.MethodGet, "/meals", nil, sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.ListMealsResponse
	decode(t, resp, &body)
	return body.Meals
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == api.SessionCookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"diet-service"}`, readBody(t, resp))
}

func TestRegister_SetsSessionCookie(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/users", fiber.Map{"name": "Ana", "email": "ana@example.com"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	_, err := uuid.Parse(cookie.Value)
	assert.NoError(t, err)
}

func TestRegister_KeepsExistingSession(t *testing.T) {
	s := newTestServer(t, nil)
	session := uuid.NewString()

	resp := s.do(t, http.MethodPost, "/users", fiber.Map{"name": "Ana", "email": "ana@example.com"}, session)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	user, err := s.store.Users().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, session, user.SessionID.String())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "Ana", "ana@example.com")

	resp := s.do(t, http.MethodPost, "/users", fiber.Map{"name": "Bia", "email": "ana@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
	assert.JSONEq(t, `{"error":"Email already in use"}`, readBody(t, resp))

	users, err := s.store.Users().FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil)

	cases := map[string]any{
		"missing name":  fiber.Map{"email": "ana@example.com"},
		"invalid email": fiber.Map{"name": "Ana", "email": "not-an-email"},
		"missing email": fiber.Map{"name": "Ana"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/users", body, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Nil(t, sessionCookie(resp))
		})
	}
}

func TestListAndGetUsers(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "Ana", "ana@example.com")

	resp := s.do(t, http.MethodGet, "/users", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list api.ListUsersResponse
	decode(t, resp, &list)
	require.Len(t, list.Users, 1)

	resp = s.do(t, http.MethodGet, "/users/"+list.Users[0].ID.String(), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got api.GetUserResponse
	decode(t, resp, &got)
	require.NotNil(t, got.User)
	assert.Equal(t, "ana@example.com", got.User.Email)
}

func TestGetUser_UnknownAndMalformedID(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/users/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, readBody(t, resp))

	resp = s.do(t, http.MethodGet, "/users/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMeals_RequireSessionCookie(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/meals", "/meals/summary", "/meals/" + uuid.NewString()} {
		resp := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, readBody(t, resp))
	}
}

func TestMeals_UnknownSession(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/meals", fiber.Map{
		"name": "Lunch", "description": "Rice", "date": "2024-01-10", "time": "12:30", "is_on_diet": true,
	}, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"User not found."}`, readBody(t, resp))

	resp = s.do(t, http.MethodGet, "/meals", nil, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMeals_CreateAndListOrderedByDate(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")

	s.createMeal(t, session, "Breakfast", "2024-01-10", true)
	s.createMeal(t, session, "Dinner", "2024-01-12", false)
	s.createMeal(t, session, "Lunch", "2024-01-11", true)

	meals := s.listMeals(t, session)
	require.Len(t, meals, 3)
	assert.Equal(t, "Dinner", meals[0].Name)
	assert.Equal(t, "Lunch", meals[1].Name)
	assert.Equal(t, "Breakfast", meals[2].Name)
	assert.Equal(t, "12:30", meals[0].Time)

	other := s.register(t, "Bia", "bia@example.com")
	assert.Empty(t, s.listMeals(t, other))
}

func TestMeals_CreateValidation(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")

	cases := map[string]fiber.Map{
		"missing is_on_diet": {"name": "Lunch", "description": "Rice", "date": "2024-01-10", "time": "12:30"},
		"short date":         {"name": "Lunch", "description": "Rice", "date": "2024", "time": "12:30", "is_on_diet": true},
		"time without colon": {"name": "Lunch", "description": "Rice", "date": "2024-01-10", "time": "12h30", "is_on_diet": true},
		"missing name":       {"description": "Rice", "date": "2024-01-10", "time": "12:30", "is_on_diet": true},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/meals", body, session)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	assert.Empty(t, s.listMeals(t, session))
}

func TestMeals_GetUpdateDelete(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")
	s.createMeal(t, session, "Lunch", "2024-01-10", true)
	meal := s.listMeals(t, session)[0]
	path := "/meals/" + meal.ID.String()

	resp := s.do(t, http.MethodGet, path, nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got api.GetMealResponse
	decode(t, resp, &got)
	assert.Equal(t, meal.ID, got.Meal.ID)

	resp = s.do(t, http.MethodPut, path, fiber.Map{"is_on_diet": false}, session)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	updated := s.listMeals(t, session)[0]
	assert.False(t, updated.IsOnDiet)
	assert.Equal(t, meal.Name, updated.Name)
	assert.Equal(t, meal.Description, updated.Description)
	assert.Equal(t, meal.Date, updated.Date)
	assert.Equal(t, meal.Time, updated.Time)

	resp = s.do(t, http.MethodDelete, path, nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
	assert.Empty(t, s.listMeals(t, session))

	resp = s.do(t, http.MethodGet, path, nil, session)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Meal not found."}`, readBody(t, resp))
}

func TestMeals_UnknownAndMalformedIDs(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")
	unknown := "/meals/" + uuid.NewString()

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, unknown, nil, session).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, unknown, fiber.Map{"name": "x"}, session).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, unknown, nil, session).StatusCode)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/meals/123", nil, session).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/meals/123", fiber.Map{"name": "x"}, session).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/meals/123", nil, session).StatusCode)
}

func TestMeals_UpdateValidation(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")
	s.createMeal(t, session, "Lunch", "2024-01-10", true)
	path := "/meals/" + s.listMeals(t, session)[0].ID.String()

	resp := s.do(t, http.MethodPut, path, fiber.Map{"date": "10/01"}, session)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, path, fiber.Map{"photo_url": "not a url"}, session)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, path, fiber.Map{"photo_url": "http://storage/meal-photos/a.jpg"}, session)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	meal := s.listMeals(t, session)[0]
	require.NotNil(t, meal.PhotoURL)
	assert.Equal(t, "http://storage/meal-photos/a.jpg", *meal.PhotoURL)
	assert.Equal(t, "2024-01-10", meal.Date)
}

// Meals are reachable by id from any resolvable session.
func TestMeals_AccessByIDIsNotScopedToOwner(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.register(t, "Ana", "ana@example.com")
	stranger := s.register(t, "Bia", "bia@example.com")
	s.createMeal(t, owner, "Lunch", "2024-01-10", true)
	path := "/meals/" + s.listMeals(t, owner)[0].ID.String()

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil, stranger).StatusCode)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPut, path, fiber.Map{"name": "Changed"}, stranger).StatusCode)
	assert.Equal(t, "Changed", s.listMeals(t, owner)[0].Name)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, nil, stranger).StatusCode)
	assert.Empty(t, s.listMeals(t, owner))
}

func TestMeals_Summary(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "Ana", "ana@example.com")

	resp := s.do(t, http.MethodGet, "/meals/summary", nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"totalOfMeals":0,"totalInDiet":0,"totalOffdiet":0,"bestDietSequence":0}`, readBody(t, resp))

	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, count := range []int{2, 5, 3} {
		createdAt := day.AddDate(0, 0, i)
		s.store.Now = func() time.Time { return createdAt }
		for j := 0; j < count; j++ {
			s.createMeal(t, session, "On diet", createdAt.Format("2006-01-02"), true)
		}
	}
	s.createMeal(t, session, "Cheat", "2024-05-02", false)

	resp = s.do(t, http.MethodGet, "/meals/summary", nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"totalOfMeals":11,"totalInDiet":10,"totalOffdiet":1,"bestDietSequence":{"dietSequence":5}}`, readBody(t, resp))
}

func TestMeals_PhotoUploadURL(t *testing.T) {
	s := newTestServer(t, fakePresigner{})
	session := s.register(t, "Ana", "ana@example.com")
	s.createMeal(t, session, "Lunch", "2024-01-10", true)
	mealID := s.listMeals(t, session)[0].ID.String()

	resp := s.do(t, http.MethodPost, "/meals/"+mealID+"/photo/upload-url", nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body api.PhotoUploadURLResponse
	decode(t, resp, &body)
	assert.Equal(t, "http://storage/upload/"+mealID, body.UploadURL)
	assert.Equal(t, "http://storage/meal-photos/"+mealID+".jpg", body.FinalImageURL)

	resp = s.do(t, http.MethodPost, "/meals/"+uuid.NewString()+"/photo/upload-url", nil, session)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMeals_PhotoUploadURL_Failures(t *testing.T) {
	disabled := newTestServer(t, nil)
	session := disabled.register(t, "Ana", "ana@example.com")
	resp := disabled.do(t, http.MethodPost, "/meals/"+uuid.NewString()+"/photo/upload-url", nil, session)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	failing := newTestServer(t, fakePresigner{err: errors.New("storage down")})
	session = failing.register(t, "Ana", "ana@example.com")
	failing.createMeal(t, session, "Lunch", "2024-01-10", true)
	mealID := failing.listMeals(t, session)[0].ID.String()
	resp = failing.do(t, http.MethodPost, "/meals/"+mealID+"/photo/upload-url", nil, session)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	store := repository.NewMemoryStore()
	userService := service.NewUserService(store.Users(), events.NoopPublisher{})
	app := api.NewApp(api.Dependencies{
		UserHandler:         api.NewUserHandler(userService, false),
		MealHandler:         api.NewMealHandler(service.NewMealService(store.Meals(), events.NoopPublisher{}), userService, nil),
		RateLimitMax:        1,
		RateLimitExpiration: time.Minute,
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/users", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
