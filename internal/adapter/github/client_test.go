package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		AppEnv:           "test",
		GitHubBaseURL:    baseURL,
		GitHubGraphQLURL: baseURL + "/graphql",
	}
}

func TestListRepositories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat/repos", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"app","full_name":"octocat/app","fork":false,"owner":{"login":"octocat"}},
			{"name":"fork","full_name":"octocat/fork","fork":true,"owner":{"login":"octocat"}}
		]`))
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok-1"}), srv.Client())
	repos, err := c.ListRepositories(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "app", repos[0].Name)
	assert.True(t, repos[1].Fork)
	assert.Equal(t, 4999, c.Pool().Status().Remaining)
}

func TestRotatesCredentialOn403(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"Go": 1200}`))
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok-1", "tok-2"}), srv.Client())
	langs, err := c.ListLanguages(context.Background(), "octocat", "app")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), langs["Go"])
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCountCommitsFromLinkHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<`+r.Host+`/repos/o/r/commits?per_page=1&page=42>; rel="last"`)
		_, _ = w.Write([]byte(`[{"sha":"abc"}]`))
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok"}), srv.Client())
	n, err := c.CountCommits(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestCountCommitsEmptyRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok"}), srv.Client())
	n, err := c.CountCommits(context.Background(), "o", "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContributionCountChunksByYear(t *testing.T) {
	var windows int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		atomic.AddInt32(&windows, 1)
		_, _ = w.Write([]byte(`{"data":{"user":{"contributionsCollection":{"contributionCalendar":{"totalContributions":150}}}}}`))
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok"}), srv.Client())
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := c.ContributionCount(context.Background(), "octocat", to.AddDate(-2, 0, 0), to)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
	assert.EqualValues(t, 2, atomic.LoadInt32(&windows))
}

func TestNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewWithPool(testConfig(srv.URL), NewPool([]string{"tok"}), srv.Client())
	_, err := c.ListRepositories(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
