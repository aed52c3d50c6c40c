package wecp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/adapter/wecp"
)

func TestListCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-1/candidates", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`[
			{"candidateId":"c-1","percentage":87.5,"candidateDetails":{"Email":"a@x.edu","registrationNumber":"R-1","Github URL":"https://github.com/alice"}},
			{"candidateId":"c-2","percentage":40,"candidateDetails":{"Email":"b@x.edu"}}
		]`))
	}))
	defer srv.Close()

	c := wecp.NewWithClient(srv.URL, "key-123", srv.Client())
	cands, err := c.ListCandidates(context.Background(), "test-1")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "c-1", cands[0].CandidateID)
	assert.Equal(t, "R-1", cands[0].RegistrationNumber)
	assert.Equal(t, "https://github.com/alice", cands[0].GitHubURL)
	assert.InDelta(t, 87.5, cands[0].Percentage, 1e-9)
	assert.NotEmpty(t, cands[0].Raw)
}

func TestListCandidatesNoCandidateFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`No candidate found`))
	}))
	defer srv.Close()

	c := wecp.NewWithClient(srv.URL, "key", srv.Client())
	cands, err := c.ListCandidates(context.Background(), "empty-test")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestGetCandidateDetailComputesPercentage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/candidates/c-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"candidateId":"c-9","score":33,"maxScore":40,"candidateDetails":{"Email":"z@x.edu"}}`))
	}))
	defer srv.Close()

	c := wecp.NewWithClient(srv.URL, "key", srv.Client())
	cand, err := c.GetCandidateDetail(context.Background(), "c-9")
	require.NoError(t, err)
	assert.InDelta(t, 82.5, cand.Percentage, 1e-9)
	assert.Equal(t, "z@x.edu", cand.Email)
}
