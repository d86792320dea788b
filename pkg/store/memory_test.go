package store_test

import (
	"strings"
	"testing"
	"time"

	"anonqa/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out a fixed instant that tests can advance explicitly.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCreateQuestion(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("  How do goroutines work?  ", "I keep reading about them.", "technology")
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "How do goroutines work?", q.Title)
	assert.Equal(t, "technology", q.Category)
	assert.Equal(t, 0, q.Likes)
	assert.Equal(t, 0, q.Dislikes)
	assert.Empty(t, q.Answers)
	assert.False(t, q.CreatedAt.IsZero())

	got, err := s.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, q.Title, got.Title)
}

func TestCreateQuestionDefaultCategory(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Untagged question", "", "")
	require.NoError(t, err)
	assert.Equal(t, store.CategoryGeneral, q.Category)
}

func TestCreateQuestionValidation(t *testing.T) {
	s := store.NewMemoryStore()

	tests := []struct {
		name     string
		title    string
		details  string
		category string
	}{
		{"empty title", "", "", ""},
		{"whitespace title", "   ", "", ""},
		{"title too long", strings.Repeat("x", store.MaxTitleLen+1), "", ""},
		{"details too long", "valid title", strings.Repeat("x", store.MaxDetailsLen+1), ""},
		{"unknown category", "valid title", "", "gossip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateQuestion(tt.title, tt.details, tt.category)
			require.Error(t, err)
			assert.True(t, store.IsValidation(err), "want ValidationError, got %v", err)
		})
	}

	// Nothing leaked into the collection.
	qs, err := s.ListQuestions(store.Filter{}, store.SortLatest)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestCreateAnswer(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Any sqlite tips?", "", "technology")
	require.NoError(t, err)

	first, err := s.CreateAnswer(q.ID, "Use transactions.")
	require.NoError(t, err)
	assert.Equal(t, q.ID, first.QuestionID)
	assert.Equal(t, 0, first.Likes)

	second, err := s.CreateAnswer(q.ID, "Enable WAL mode.")
	require.NoError(t, err)

	got, err := s.GetQuestion(q.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 2)
	// Insertion order is submission order.
	assert.Equal(t, first.ID, got.Answers[0].ID)
	assert.Equal(t, second.ID, got.Answers[1].ID)
	assert.Equal(t, 2, got.AnswerCount())
}

func TestCreateAnswerValidation(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("A question", "", "")
	require.NoError(t, err)

	_, err = s.CreateAnswer(q.ID, "   ")
	assert.True(t, store.IsValidation(err))

	_, err = s.CreateAnswer(q.ID, strings.Repeat("x", store.MaxAnswerLen+1))
	assert.True(t, store.IsValidation(err))
}

func TestCreateAnswerUnknownQuestion(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.CreateAnswer("no-such-id", "orphan answer")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "want NotFoundError, got %v", err)

	// Nothing was mutated.
	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalAnswers)
}

func TestVoteToggle(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Toggle me", "", "")
	require.NoError(t, err)

	counts, err := s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 1, Dislikes: 0}, counts)

	// Same direction again retracts the vote.
	counts, err = s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 0}, counts)
}

func TestVoteSwitch(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Switch me", "", "")
	require.NoError(t, err)

	_, err = s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)

	counts, err := s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Dislike)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 1}, counts)
}

func TestVotePerVoter(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Popular question", "", "")
	require.NoError(t, err)

	for _, voter := range []string{"a", "b", "c"} {
		_, err = s.Vote(voter, store.SubjectQuestion, q.ID, store.Like)
		require.NoError(t, err)
	}

	got, err := s.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Likes)

	// One voter retracting only removes their own vote.
	counts, err := s.Vote("b", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Likes)
}

func TestVoteOnAnswer(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("With answers", "", "")
	require.NoError(t, err)
	a, err := s.CreateAnswer(q.ID, "An answer")
	require.NoError(t, err)

	counts, err := s.Vote("voter-1", store.SubjectAnswer, a.ID, store.Dislike)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 1}, counts)

	got, err := s.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Answers[0].Dislikes)
}

func TestVoteCountersNeverNegative(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Clamped", "", "")
	require.NoError(t, err)

	// A recorded vote whose counter is already zero (e.g. restored from a
	// stale snapshot) retracts without going negative.
	snap, err := s.Export()
	require.NoError(t, err)
	snap.Votes = append(snap.Votes, store.VoteRecord{
		VoterID:     "voter-1",
		SubjectType: store.SubjectQuestion,
		SubjectID:   q.ID,
		Direction:   store.Like,
	})
	require.NoError(t, s.Import(snap))

	counts, err := s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 0}, counts)
}

func TestVoteUnknownSubject(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.Vote("voter-1", store.SubjectQuestion, "missing", store.Like)
	assert.True(t, store.IsNotFound(err))

	_, err = s.Vote("voter-1", store.SubjectAnswer, "missing", store.Like)
	assert.True(t, store.IsNotFound(err))

	_, err = s.Vote("voter-1", "comment", "id", store.Like)
	assert.True(t, store.IsValidation(err))

	_, err = s.Vote("voter-1", store.SubjectQuestion, "id", "love")
	assert.True(t, store.IsValidation(err))
}

func TestListQuestionsLatest(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemoryStore(store.WithClock(clock.Now))

	a, err := s.CreateQuestion("Q1", "", "technology")
	require.NoError(t, err)
	clock.Advance(time.Second)
	b, err := s.CreateQuestion("Q2", "", "lifestyle")
	require.NoError(t, err)

	qs, err := s.ListQuestions(store.Filter{}, store.SortLatest)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, b.ID, qs[0].ID)
	assert.Equal(t, a.ID, qs[1].ID)
}

func TestListQuestionsCategoryFilter(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.CreateQuestion("Tech question", "", "technology")
	require.NoError(t, err)
	_, err = s.CreateQuestion("Health question", "", "health")
	require.NoError(t, err)

	qs, err := s.ListQuestions(store.Filter{Category: "health"}, store.SortLatest)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Health question", qs[0].Title)

	all, err := s.ListQuestions(store.Filter{}, store.SortLatest)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListQuestionsUnknownSort(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.ListQuestions(store.Filter{}, "hottest")
	assert.True(t, store.IsValidation(err))
}

func TestListQuestionsTrending(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemoryStore(store.WithClock(clock.Now))

	// A: net votes 3, no answers -> score 3.
	a, err := s.CreateQuestion("Question A", "", "")
	require.NoError(t, err)
	for _, voter := range []string{"v1", "v2", "v3"} {
		_, err = s.Vote(voter, store.SubjectQuestion, a.ID, store.Like)
		require.NoError(t, err)
	}

	// B: net votes 2, two answers -> score 3 as well, but newer.
	clock.Advance(time.Second)
	b, err := s.CreateQuestion("Question B", "", "")
	require.NoError(t, err)
	for _, voter := range []string{"v1", "v2"} {
		_, err = s.Vote(voter, store.SubjectQuestion, b.ID, store.Like)
		require.NoError(t, err)
	}
	_, err = s.CreateAnswer(b.ID, "first")
	require.NoError(t, err)
	_, err = s.CreateAnswer(b.ID, "second")
	require.NoError(t, err)

	// C: clearly below both.
	clock.Advance(time.Second)
	_, err = s.CreateQuestion("Question C", "", "")
	require.NoError(t, err)

	qs, err := s.ListQuestions(store.Filter{}, store.SortTrending)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	// Tie on score 3 breaks toward the newer question.
	assert.Equal(t, b.ID, qs[0].ID)
	assert.Equal(t, a.ID, qs[1].ID)
	assert.Equal(t, "Question C", qs[2].Title)
}

func TestListQuestionsMostLikedAndMostAnswered(t *testing.T) {
	s := store.NewMemoryStore()

	a, err := s.CreateQuestion("Liked", "", "")
	require.NoError(t, err)
	_, err = s.Vote("v1", store.SubjectQuestion, a.ID, store.Like)
	require.NoError(t, err)

	b, err := s.CreateQuestion("Answered", "", "")
	require.NoError(t, err)
	_, err = s.CreateAnswer(b.ID, "only answer")
	require.NoError(t, err)

	byLikes, err := s.ListQuestions(store.Filter{}, store.SortMostLiked)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byLikes[0].ID)

	byAnswers, err := s.ListQuestions(store.Filter{}, store.SortMostAnswered)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byAnswers[0].ID)
}

func TestDeleteQuestionCascades(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Doomed", "", "")
	require.NoError(t, err)
	a, err := s.CreateAnswer(q.ID, "Doomed too")
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuestion(q.ID))

	_, err = s.GetQuestion(q.ID)
	assert.True(t, store.IsNotFound(err))

	// The answer went with its parent.
	_, err = s.Vote("v1", store.SubjectAnswer, a.ID, store.Like)
	assert.True(t, store.IsNotFound(err))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQuestions)
	assert.Equal(t, 0, stats.TotalAnswers)

	assert.True(t, store.IsNotFound(s.DeleteQuestion(q.ID)))
}

func TestCreateReport(t *testing.T) {
	s := store.NewMemoryStore()

	r, err := s.CreateReport(store.SubjectAnswer, "some-id", "spam", "looks automated")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, store.ReportStatusPending, r.Status)
	assert.Equal(t, "spam", r.Reason)

	reports, err := s.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
}

func TestCreateReportValidation(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.CreateReport("post", "id", "spam", "")
	assert.True(t, store.IsValidation(err))

	_, err = s.CreateReport(store.SubjectQuestion, "", "spam", "")
	assert.True(t, store.IsValidation(err))

	_, err = s.CreateReport(store.SubjectQuestion, "id", "because", "")
	assert.True(t, store.IsValidation(err))
}

func TestReportSurvivesSubjectDeletion(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Reported", "", "")
	require.NoError(t, err)
	a, err := s.CreateAnswer(q.ID, "Offensive answer")
	require.NoError(t, err)

	r, err := s.CreateReport(store.SubjectAnswer, a.ID, "harassment", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuestion(q.ID))

	reports, err := s.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
	assert.Equal(t, a.ID, reports[0].ItemID)
}

func TestStats(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemoryStore(store.WithClock(clock.Now))

	old, err := s.CreateQuestion("Old tech question", "", "technology")
	require.NoError(t, err)
	_, err = s.CreateAnswer(old.ID, "old answer")
	require.NoError(t, err)

	// Move past the one-week activity window.
	clock.Advance(8 * 24 * time.Hour)

	fresh, err := s.CreateQuestion("Fresh health question", "", "health")
	require.NoError(t, err)
	_, err = s.CreateAnswer(fresh.ID, "fresh answer")
	require.NoError(t, err)
	_, err = s.CreateReport(store.SubjectQuestion, fresh.ID, "other", "")
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQuestions)
	assert.Equal(t, 2, stats.TotalAnswers)
	assert.Equal(t, 1, stats.TotalReports)
	assert.Equal(t, 1, stats.CategoryCounts["technology"])
	assert.Equal(t, 1, stats.CategoryCounts["health"])
	assert.Equal(t, 1, stats.QuestionsThisWeek)
	assert.Equal(t, 1, stats.AnswersThisWeek)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Keep me", "with details", "science")
	require.NoError(t, err)
	_, err = s.CreateAnswer(q.ID, "an answer")
	require.NoError(t, err)
	_, err = s.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	_, err = s.CreateReport(store.SubjectQuestion, q.ID, "spam", "")
	require.NoError(t, err)

	snap, err := s.Export()
	require.NoError(t, err)

	restored := store.NewMemoryStore()
	require.NoError(t, restored.Import(snap))

	got, err := restored.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep me", got.Title)
	assert.Equal(t, 1, got.Likes)
	require.Len(t, got.Answers, 1)

	reports, err := restored.ListReports()
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	// The voter's recorded state came along: voting like again retracts.
	counts, err := restored.Vote("voter-1", store.SubjectQuestion, q.ID, store.Like)
	require.NoError(t, err)
	assert.Equal(t, store.VoteCount{Likes: 0, Dislikes: 0}, counts)
}

func TestImportNil(t *testing.T) {
	s := store.NewMemoryStore()
	assert.True(t, store.IsValidation(s.Import(nil)))
}

func TestContentPolicyRejects(t *testing.T) {
	policy := store.NewWordListPolicy("forbiddenword")
	s := store.NewMemoryStore(store.WithContentPolicy(policy))

	_, err := s.CreateQuestion("Totally FORBIDDENWORD title", "", "")
	assert.True(t, store.IsValidation(err))

	q, err := s.CreateQuestion("Clean title", "", "")
	require.NoError(t, err)

	_, err = s.CreateAnswer(q.ID, "contains forbiddenword somewhere")
	assert.True(t, store.IsValidation(err))
}

func TestListQuestionsReturnsCopies(t *testing.T) {
	s := store.NewMemoryStore()

	q, err := s.CreateQuestion("Immutable", "", "")
	require.NoError(t, err)

	qs, err := s.ListQuestions(store.Filter{}, store.SortLatest)
	require.NoError(t, err)
	qs[0].Title = "Mutated"
	qs[0].Likes = 99

	got, err := s.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Immutable", got.Title)
	assert.Equal(t, 0, got.Likes)
}
