package router

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/mailer"
	"github.com/tourbook/tours-api/internal/metrics"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/service"
	"github.com/tourbook/tours-api/internal/utils"
)

// tokenUsers authenticates fixed bearer tokens without touching the DB.
type tokenUsers map[string]*model.User

func (t tokenUsers) Authenticate(_ context.Context, raw string) (*model.User, error) {
	if u, ok := t[raw]; ok {
		return u, nil
	}
	if raw == "" {
		return nil, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	return nil, utils.ErrInvalidToken
}

type nopMail struct{}

func (nopMail) Send(context.Context, mailer.Message) error { return nil }

type fixture struct {
	e    *echo.Echo
	mock sqlmock.Sqlmock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	log := zap.NewNop()
	tours := repository.NewTourRepo(db, log)
	reviews := repository.NewReviewRepo(db, log)
	users := repository.NewUserRepo(db, log, 4)
	auth := service.NewAuthService(users, nopMail{}, nil, "secret", time.Hour, log)

	e := New(Deps{
		Log: log,
		Auth: tokenUsers{
			"admin": {ID: uuid.NewString(), Role: model.RoleAdmin},
			"guide": {ID: uuid.NewString(), Role: model.RoleGuide},
			"user":  {ID: uuid.NewString(), Role: model.RoleUser},
		},
		Tours:   handler.NewTourHandler(tours, reviews, 100),
		Reviews: handler.NewReviewHandler(reviews, 100),
		Users:   handler.NewUserHandler(auth, users, 24*time.Hour, false, 100),
		Metrics: metrics.New(),
	})
	return fixture{e: e, mock: mock}
}

func (f fixture) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "", "").Code)

	rec := f.do(http.MethodGet, "/api/v1/nothing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/api/v1/nothing does not exist", body(t, rec)["message"])
}

func TestListToursWithFeatures(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	f.mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, price FROM tours WHERE secret_tour = FALSE AND price < ? ORDER BY created_at DESC LIMIT ? OFFSET ?")).
		WithArgs(1000.0, 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}).AddRow(id, "The Sea Explorer", 497.0))

	rec := f.do(http.MethodGet, "/api/v1/tours?fields=name,price&price[lt]=1000&limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := body(t, rec)
	assert.Equal(t, "success", b["status"])
	assert.EqualValues(t, 1, b["results"])
	tours := b["data"].(map[string]any)["tours"].([]any)
	assert.Equal(t, map[string]any{"id": id, "name": "The Sea Explorer", "price": 497.0}, tours[0])
}

func TestListToursRejectsUnknownFilter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/tours?password=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", body(t, rec)["status"])
}

func TestGetTourWithMalformedID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/tours/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid id: not-a-uuid", body(t, rec)["message"])
}

func TestTourWritesRequireStaff(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodDelete, "/api/v1/tours/"+id, "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/tours/"+id, "guide", "").Code)

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM tours WHERE secret_tour = FALSE AND id = ?")).
		WithArgs(id, 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec := f.do(http.MethodPatch, "/api/v1/tours/"+id, "admin", `{"price":500}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No document found with that ID", body(t, rec)["message"])
}

func TestReviewRoutes(t *testing.T) {
	f := newFixture(t)
	tourID, reviewID := uuid.NewString(), uuid.NewString()

	rec := f.do(http.MethodPost, "/api/v1/tours/"+tourID+"/reviews", "", `{"review":"Great","rating":5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/reviews/"+reviewID, "guide", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to perform this action", body(t, rec)["message"])

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews (id, review, rating, created_at, tour_id, user_id)")).
		WithArgs(sqlmock.AnyArg(), "Great", 5.0, sqlmock.AnyArg(), tourID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	rec = f.do(http.MethodPost, "/api/v1/tours/"+tourID+"/reviews", "user", `{"review":"Great","rating":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	review := body(t, rec)["data"].(map[string]any)["review"].(map[string]any)
	assert.Equal(t, tourID, review["tour"])
}

func TestSignupSetsCookie(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	rec := f.do(http.MethodPost, "/api/v1/users/signup", "",
		`{"name":"Ann","email":"ann@example.com","password":"pass1234","passwordConfirm":"pass1234","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	b := body(t, rec)
	assert.NotEmpty(t, b["token"])
	user := b["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, model.RoleUser, user["role"])
	assert.NotContains(t, user, "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/users/login", "", `{"email":"ann@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/users", "user", "").Code)

	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, photo, role, created_at FROM users WHERE active = TRUE ORDER BY created_at DESC LIMIT ? OFFSET ?")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "photo", "role", "created_at"}))
	rec := f.do(http.MethodGet, "/api/v1/users", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, body(t, rec)["results"])
}

func TestGetMeReturnsContextUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/users/me", "guide", "")
	require.Equal(t, http.StatusOK, rec.Code)
	user := body(t, rec)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, model.RoleGuide, user["role"])
}

func TestLogoutOverwritesCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/users/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedout", cookies[0].Value)
}

func TestTopCheapAliasRewritesQuery(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	f.mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, difficulty, ratings_average, price, summary FROM tours WHERE secret_tour = FALSE ORDER BY ratings_average DESC, price ASC LIMIT ? OFFSET ?")).
		WithArgs(5, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "difficulty", "ratings_average", "price", "summary"}).
			AddRow(id, "The Forest Hiker", "easy", 4.7, 397.0, "Breathtaking hike"))

	rec := f.do(http.MethodGet, "/api/v1/tours/top-5-cheap?limit=50", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tours := body(t, rec)["data"].(map[string]any)["tours"].([]any)
	require.Len(t, tours, 1)
	assert.ElementsMatch(t, []string{"id", "name", "difficulty", "ratingsAverage", "price", "summary"}, keys(tours[0].(map[string]any)))
}

func TestTourStats(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("GROUP BY difficulty").
		WillReturnRows(sqlmock.NewRows([]string{"difficulty", "n", "ratings", "avg_rating", "avg_price", "min_price", "max_price"}).
			AddRow("easy", 2, 50, 4.7, 397.0, 297.0, 497.0))

	rec := f.do(http.MethodGet, "/api/v1/tours/tour-stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := body(t, rec)["data"].(map[string]any)["stats"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, "easy", stats[0].(map[string]any)["difficulty"])
	assert.EqualValues(t, 2, stats[0].(map[string]any)["numTours"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestListToursSortedAndPaged(t *testing.T) {
	f := newFixture(t)
	cheap, dear := uuid.NewString(), uuid.NewString()
	cols := []string{"id", "name", "slug", "duration", "max_group_size", "difficulty", "ratings_average",
		"ratings_quantity", "price", "price_discount", "summary", "description", "image_cover",
		"images", "start_dates", "secret_tour", "start_location", "locations"}
	row := func(id, name string, duration int, price float64) []driver.Value {
		return []driver.Value{id, name, "", duration, 10, "easy", 4.5, 0, price, nil, "A summary", "", "cover.jpg",
			[]byte(`[]`), []byte(`[]`), false, nil, []byte(`[]`)}
	}

	f.mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, slug, duration, max_group_size, difficulty, ratings_average, ratings_quantity, price, price_discount, summary, description, image_cover, images, start_dates, secret_tour, start_location, locations FROM tours WHERE secret_tour = FALSE ORDER BY price DESC LIMIT ? OFFSET ?")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(row(dear, "The Snow Adventurer", 14, 997)...).
			AddRow(row(cheap, "The Forest Hiker", 7, 397)...))
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM tour_guides tg")).
		WithArgs(dear, cheap, model.RoleGuide, model.RoleLeadGuide).
		WillReturnRows(sqlmock.NewRows([]string{"tour_id", "id", "name", "email", "photo", "role"}))

	rec := f.do(http.MethodGet, "/api/v1/tours?sort=-price&limit=2&page=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := body(t, rec)
	assert.EqualValues(t, 2, b["results"])
	tours := b["data"].(map[string]any)["tours"].([]any)
	require.Len(t, tours, 2)
	first, second := tours[0].(map[string]any), tours[1].(map[string]any)
	assert.Equal(t, dear, first["id"])
	assert.Equal(t, 997.0, first["price"])
	assert.Equal(t, 2.0, first["durationInWeeks"])
	assert.Equal(t, cheap, second["id"])
	assert.Equal(t, []any{}, second["guides"])
	assert.NotContains(t, first, "version")
	assert.NotContains(t, first, "createdAt")
}
