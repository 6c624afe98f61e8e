package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core/catalog"
)

func Test_home(t *testing.T) {
	f := setup(t)
	f.run(t, []httpTest{
		{name: "health", path: "/", wantCode: http.StatusOK, wantData: []byte(`{"name":"Нейромагия","build":"test","status":"ok"}`)},
		{name: "trailing slash", path: "/v1/catalog/reviews/", wantCode: http.StatusOK},
		{name: "unknown route", path: "/v1/lol", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "Not Found"})},
	})
}

func Test_catalogApi(t *testing.T) {
	f := setup(t)

	t.Run("query", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/catalog/courses", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var all []catalog.Course
		unmarshal(t, rec, &all)
		assert.NotEmpty(t, all)

		rec = f.do(http.MethodGet, "/v1/catalog/courses?level=BEGINNER", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var beginners []catalog.Course
		unmarshal(t, rec, &beginners)
		assert.NotEmpty(t, beginners)
		assert.Less(t, len(beginners), len(all))
		for _, c := range beginners {
			assert.Equal(t, catalog.LevelBeginner, c.Level)
		}
	})

	t.Run("featured", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/catalog/courses/featured?limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var courses []catalog.Course
		unmarshal(t, rec, &courses)
		assert.LessOrEqual(t, len(courses), 2)
	})

	f.run(t, []httpTest{
		{name: "retrieve", path: "/v1/catalog/courses/ai-for-beginners", wantCode: http.StatusOK},
		{
			name: "retrieve (unknown)", path: "/v1/catalog/courses/lol", wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{name: "reviews", path: "/v1/catalog/reviews", wantCode: http.StatusOK},
	})
}

func Test_httpMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := setup(t, options{metrics: reg})

	f.do(http.MethodGet, "/v1/catalog/courses/ai-for-beginners", "")
	f.do(http.MethodGet, "/v1/catalog/courses/vibe-coding", "")
	f.do(http.MethodGet, "/v1/catalog/courses/lol", "")

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // one series per status, same route

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{code="200",method="GET",route="/v1/catalog/courses/:slug"} 2
http_requests_total{code="404",method="GET",route="/v1/catalog/courses/:slug"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}
