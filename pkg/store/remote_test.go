package store_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anonqa/pkg/api"
	"anonqa/pkg/store"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteStoreStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"bad request", http.StatusBadRequest, `{"message":"title is required"}`, store.IsValidation},
		{"not found", http.StatusNotFound, `{"message":"question x not found"}`, store.IsNotFound},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, store.IsTransient},
		{"unavailable no body", http.StatusServiceUnavailable, ``, store.IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			rs, err := store.NewRemoteStore(srv.URL)
			require.NoError(t, err)

			_, err = rs.GetQuestion("x")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type: %v", err)
		})
	}
}

func TestRemoteStoreUnreachable(t *testing.T) {
	// Nothing listens here.
	rs, err := store.NewRemoteStore("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = rs.GetQuestion("x")
	require.Error(t, err)
	assert.True(t, store.IsTransient(err), "unexpected error type: %v", err)
}

func TestRemoteStoreTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	rs, err := store.NewRemoteStore(srv.URL, store.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = rs.GetQuestion("x")
	require.Error(t, err)
	assert.True(t, store.IsTransient(err), "unexpected error type: %v", err)
}

func TestRemoteStoreValidatesBeforeSending(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rs, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)

	_, err = rs.CreateQuestion("", "", "")
	assert.True(t, store.IsValidation(err))

	_, err = rs.CreateAnswer("qid", "  ")
	assert.True(t, store.IsValidation(err))

	_, err = rs.ListQuestions(store.Filter{}, "hottest")
	assert.True(t, store.IsValidation(err))

	assert.False(t, called, "invalid input must not reach the wire")
}

// newTestServer runs the real API over a MemoryStore so the RemoteStore can
// be exercised end to end.
func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	mem := store.NewMemoryStore()
	sessionStore := sessions.NewCookieStore([]byte("test-session-key"))
	auth := &api.Authenticator{Secret: []byte("test-jwt-secret")}
	handler := api.New(mem, sessionStore, auth, nil)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv, mem
}

func TestRemoteStoreEndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)

	rs, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)

	q, err := rs.CreateQuestion("Remote question", "asked over HTTP", "technology")
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, 0, q.Likes)

	a, err := rs.CreateAnswer(q.ID, "remote answer")
	require.NoError(t, err)
	assert.Equal(t, q.ID, a.QuestionID)

	got, err := rs.GetQuestion(q.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)

	qs, err := rs.ListQuestions(store.Filter{Category: "technology"}, store.SortTrending)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, q.ID, qs[0].ID)

	_, err = rs.GetQuestion("missing")
	assert.True(t, store.IsNotFound(err))

	stats, err := rs.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuestions)
	assert.Equal(t, 1, stats.TotalAnswers)
}

func TestRemoteStoreVoteToggle(t *testing.T) {
	srv, _ := newTestServer(t)

	rs, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)

	q, err := rs.CreateQuestion("Vote on me", "", "")
	require.NoError(t, err)

	// The cookie jar keeps the voter session, so the server recognizes the
	// repeat vote and retracts it.
	counts, err := rs.Vote("", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 1, Dislikes: 0}, counts)

	counts, err = rs.Vote("", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 0}, counts)

	// A second client is a different anonymous voter.
	other, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)
	_, err = rs.Vote("", store.SubjectQuestion, q.ID, store.Dislike)
	require.NoError(t, err)
	counts, err = other.Vote("", store.SubjectQuestion, q.ID, store.Dislike)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 2}, counts)
}

func TestRemoteStoreReport(t *testing.T) {
	srv, mem := newTestServer(t)

	rs, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)

	r, err := rs.CreateReport(store.SubjectAnswer, "any-id", "spam", "details here")
	require.NoError(t, err)
	assert.Equal(t, store.ReportStatusPending, r.Status)

	_, err = rs.CreateReport(store.SubjectAnswer, "any-id", "because", "")
	assert.True(t, store.IsValidation(err))

	reports, err := mem.ListReports()
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRemoteStoreAdminOperations(t *testing.T) {
	srv, _ := newTestServer(t)

	rs, err := store.NewRemoteStore(srv.URL)
	require.NoError(t, err)

	q, err := rs.CreateQuestion("Protected delete", "", "")
	require.NoError(t, err)

	// No token: the server refuses and nothing is deleted.
	err = rs.DeleteQuestion(q.ID)
	require.Error(t, err)

	_, err = rs.GetQuestion(q.ID)
	require.NoError(t, err)
}
