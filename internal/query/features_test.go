package query

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tours-api/internal/apperror"
)

func tourFields() []Field {
	return []Field{
		{Name: "id", Column: "id"},
		{Name: "name", Column: "name"},
		{Name: "duration", Column: "duration", Kind: KindNumber},
		{Name: "difficulty", Column: "difficulty"},
		{Name: "price", Column: "price", Kind: KindNumber},
		{Name: "ratingsAverage", Column: "ratings_average", Kind: KindNumber},
		{Name: "secretTour", Column: "secret_tour", Kind: KindBool},
		{Name: "images", Column: "images", Kind: KindJSON},
		{Name: "createdAt", Column: "created_at", Kind: KindTime, Hidden: true},
		{Name: "version", Column: "version", Kind: KindNumber, Hidden: true},
		{Name: "guides"},
	}
}

func newTourQuery() *Query {
	return New("tours", tourFields(), "secret_tour = FALSE").Virtual("durationInWeeks", "duration")
}

func mustParse(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestDefaultsWithoutParams(t *testing.T) {
	q, err := NewFeatures(newTourQuery(), url.Values{}, DefaultMaxLimit).All()
	require.NoError(t, err)

	sql, args := q.Build()
	assert.Equal(t,
		"SELECT id, name, duration, difficulty, price, ratings_average, secret_tour, images FROM tours WHERE secret_tour = FALSE ORDER BY created_at DESC LIMIT ? OFFSET ?",
		sql)
	assert.Equal(t, []any{10, 0}, args)
	assert.Nil(t, q.Keep())
}

func TestFilterEqualityAndOperators(t *testing.T) {
	params := mustParse(t, "difficulty=easy&duration[gte]=5&price[lt]=1500&sort=price&page=1&limit=3&fields=name")
	f := NewFeatures(newTourQuery(), params, DefaultMaxLimit).Filter()
	require.NoError(t, f.Err())
	sql, args := f.Query.Build()
	assert.Equal(t,
		"SELECT id, name, duration, difficulty, price, ratings_average, secret_tour, images FROM tours WHERE secret_tour = FALSE AND difficulty = ? AND duration >= ? AND price < ?",
		sql)
	assert.Equal(t, []any{"easy", 5.0, 1500.0}, args)
}

func TestFilterInOperatorAndRepeatedValues(t *testing.T) {
	params := mustParse(t, "difficulty[in]=easy,medium&duration=5&duration=7")
	f := NewFeatures(newTourQuery(), params, 0).Filter()
	require.NoError(t, f.Err())

	sql, args := f.Query.BuildCount()
	assert.Equal(t, "SELECT COUNT(*) FROM tours WHERE secret_tour = FALSE AND difficulty IN (?,?) AND duration IN (?,?)", sql)
	assert.Equal(t, []any{"easy", "medium", 5.0, 7.0}, args)
}

func TestFilterRejectsUnknownFieldsAndOperators(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "password=x",
		"json column":     "images=a.jpg",
		"bad operator":    "price[ne]=5",
		"malformed key":   "price[gte=5",
		"populated field": "guides=abc",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := NewFeatures(newTourQuery(), mustParse(t, raw), 0).Filter()
			ae, ok := apperror.As(f.Err())
			require.True(t, ok, "expected operational error, got %v", f.Err())
			assert.Equal(t, http.StatusBadRequest, ae.Status)
		})
	}
}

func TestFilterCastsTypedValues(t *testing.T) {
	f := NewFeatures(newTourQuery(), mustParse(t, "secretTour=true"), 0).Filter()
	require.NoError(t, f.Err())
	_, args := f.Query.Build()
	assert.Equal(t, []any{true}, args)

	f = NewFeatures(newTourQuery(), mustParse(t, "price[gte]=cheap"), 0).Filter()
	assert.True(t, apperror.IsKind(f.Err(), apperror.KindCast))
}

func TestSortHonorsRequestedOrdering(t *testing.T) {
	f := NewFeatures(newTourQuery(), mustParse(t, "sort=-price,ratingsAverage"), 0).Sort()
	require.NoError(t, f.Err())
	sql, _ := f.Query.Build()
	assert.Contains(t, sql, "ORDER BY price DESC, ratings_average ASC")
	assert.NotContains(t, sql, "created_at")
}

func TestSortRejectsUnknownField(t *testing.T) {
	f := NewFeatures(newTourQuery(), mustParse(t, "sort=-nope"), 0).Sort()
	assert.True(t, apperror.IsKind(f.Err(), apperror.KindBadRequest))
}

func TestLimitFieldsSelectsAndKeepsVirtuals(t *testing.T) {
	f := NewFeatures(newTourQuery(), mustParse(t, "fields=name,duration,createdAt"), 0).LimitFields()
	require.NoError(t, f.Err())
	sql, _ := f.Query.Build()
	assert.Equal(t, "SELECT id, name, duration, created_at FROM tours WHERE secret_tour = FALSE", sql)
	assert.ElementsMatch(t, []string{"id", "name", "duration", "createdAt", "durationInWeeks"}, f.Query.Keep())
}

func TestLimitFieldsExclusion(t *testing.T) {
	f := NewFeatures(newTourQuery(), mustParse(t, "fields=-images,-secretTour"), 0).LimitFields()
	require.NoError(t, f.Err())
	sql, _ := f.Query.Build()
	assert.Equal(t, "SELECT id, name, duration, difficulty, price, ratings_average FROM tours WHERE secret_tour = FALSE", sql)
}

func TestPaginate(t *testing.T) {
	cases := []struct {
		raw         string
		max         int
		limit, skip int
	}{
		{"", 0, 10, 0},
		{"page=3&limit=20", 0, 20, 40},
		{"page=2&limit=2", DefaultMaxLimit, 2, 2},
		{"page=abc&limit=xyz", 0, 10, 0},
		{"page=0&limit=-5", 0, 10, 0},
		{"page=2&limit=5000", DefaultMaxLimit, 100, 100},
		{"page=2&limit=5000", 0, 5000, 5000},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			f := NewFeatures(newTourQuery(), mustParse(t, tc.raw), tc.max).Paginate()
			require.NoError(t, f.Err())
			limit, skip := f.Query.Pagination()
			assert.Equal(t, tc.limit, limit)
			assert.Equal(t, tc.skip, skip)
		})
	}
}

func TestPaginateNeverOverflowsOffset(t *testing.T) {
	for _, raw := range []string{
		"page=922337203685477580&limit=100",
		"page=9223372036854775807&limit=1",
		"page=2&limit=9223372036854775807",
	} {
		t.Run(raw, func(t *testing.T) {
			f := NewFeatures(newTourQuery(), mustParse(t, raw), 0).Paginate()
			require.NoError(t, f.Err())
			limit, skip := f.Query.Pagination()
			assert.Positive(t, limit)
			assert.GreaterOrEqual(t, skip, 0)
		})
	}
}

func TestStagesStopAfterFirstError(t *testing.T) {
	q, err := NewFeatures(newTourQuery(), mustParse(t, "nope=1&sort=price"), 0).All()
	assert.Nil(t, q)
	require.Error(t, err)
}

func TestPickKeepsOnlySelectedKeys(t *testing.T) {
	type row struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	out, err := Pick([]row{{ID: "1", Name: "Forest Hiker", Price: 397}}, []string{"id", "name"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "1", "name": "Forest Hiker"}}, out)
}
