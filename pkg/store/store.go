// Package store holds the question/answer board's data model and the Store
// contract shared by every backing implementation: the in-memory store, the
// SQLite-backed store used by the web server, and the HTTP client store.
package store

import (
	"sort"
	"strings"
	"time"
)

// Length limits applied after trimming whitespace.
const (
	MaxTitleLen   = 200
	MaxDetailsLen = 1000
	MaxAnswerLen  = 2000
)

// SubjectType identifies what a vote or report points at.
type SubjectType string

const (
	SubjectQuestion SubjectType = "question"
	SubjectAnswer   SubjectType = "answer"
)

func ValidSubjectType(t SubjectType) bool {
	return t == SubjectQuestion || t == SubjectAnswer
}

// Direction is the caller's vote on a subject.
type Direction string

const (
	Like    Direction = "like"
	Dislike Direction = "dislike"
)

func ValidDirection(d Direction) bool {
	return d == Like || d == Dislike
}

// CategoryGeneral is the default when a question is submitted without one.
const CategoryGeneral = "general"

var categories = []string{
	"technology",
	"science",
	"education",
	"health",
	"lifestyle",
	"business",
	CategoryGeneral,
}

// Categories returns the fixed category set.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

func ValidCategory(c string) bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

var reportReasons = []string{
	"spam",
	"harassment",
	"inappropriate",
	"misinformation",
	"other",
}

// ReportReasons returns the fixed set of accepted report reasons.
func ReportReasons() []string {
	out := make([]string, len(reportReasons))
	copy(out, reportReasons)
	return out
}

func ValidReportReason(r string) bool {
	for _, v := range reportReasons {
		if v == r {
			return true
		}
	}
	return false
}

// ReportStatusPending is the only status modeled in-core; resolution happens
// outside the system.
const ReportStatusPending = "pending"

type Question struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Details   string    `json:"details,omitempty"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Answers   []*Answer `json:"answers"`
}

// AnswerCount is always derived from the answer list, never stored.
func (q *Question) AnswerCount() int {
	return len(q.Answers)
}

// TrendingScore combines net votes and engagement: (likes - dislikes) + 0.5
// per answer.
func (q *Question) TrendingScore() float64 {
	return float64(q.Likes-q.Dislikes) + 0.5*float64(q.AnswerCount())
}

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int       `json:"likes"`
	Dislikes   int       `json:"dislikes"`
}

type Report struct {
	ID        string      `json:"id"`
	ItemType  SubjectType `json:"itemType"`
	ItemID    string      `json:"itemId"`
	Reason    string      `json:"reason"`
	Details   string      `json:"details,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    string      `json:"status"`
}

// VoteCount is the updated pair returned by Vote.
type VoteCount struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// VoteRecord is one voter's current vote on a subject, used by snapshots.
type VoteRecord struct {
	VoterID     string      `json:"voterId"`
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   string      `json:"subjectId"`
	Direction   Direction   `json:"direction"`
}

// Snapshot is a whole-store dump for backup and restore.
type Snapshot struct {
	Questions  []*Question  `json:"questions"`
	Reports    []*Report    `json:"reports"`
	Votes      []VoteRecord `json:"votes"`
	ExportedAt time.Time    `json:"exportedAt"`
}

// Stats summarizes board activity.
type Stats struct {
	TotalQuestions    int            `json:"totalQuestions"`
	TotalAnswers      int            `json:"totalAnswers"`
	TotalReports      int            `json:"totalReports"`
	CategoryCounts    map[string]int `json:"categoryCounts"`
	QuestionsThisWeek int            `json:"questionsThisWeek"`
	AnswersThisWeek   int            `json:"answersThisWeek"`
}

// Sort selects a listing order.
type Sort string

const (
	SortTrending     Sort = "trending"
	SortLatest       Sort = "latest"
	SortMostLiked    Sort = "most_liked"
	SortMostAnswered Sort = "most_answered"
)

func ValidSort(s Sort) bool {
	switch s {
	case SortTrending, SortLatest, SortMostLiked, SortMostAnswered:
		return true
	}
	return false
}

// Filter narrows a question listing. An empty Category matches everything.
type Filter struct {
	Category string
}

// Store is the operation contract shared by all backing implementations.
//
// Vote implements a three-state toggle per voter and subject: voting the same
// direction twice retracts the vote, voting the opposite direction switches
// it, and counters are clamped at zero. A failed mutation never partially
// applies.
type Store interface {
	CreateQuestion(title, details, category string) (*Question, error)
	GetQuestion(id string) (*Question, error)
	DeleteQuestion(id string) error
	ListQuestions(f Filter, s Sort) ([]*Question, error)

	CreateAnswer(questionID, content string) (*Answer, error)

	Vote(voterID string, subject SubjectType, subjectID string, dir Direction) (VoteCount, error)

	CreateReport(itemType SubjectType, itemID, reason, details string) (*Report, error)
	ListReports() ([]*Report, error)

	Stats() (*Stats, error)
	Export() (*Snapshot, error)
	Import(snap *Snapshot) error
}

// NormalizeQuestionInput trims and validates title/details/category and
// applies the category default. Shared by implementations so the invariants
// hold no matter which backend is in use.
func NormalizeQuestionInput(title, details, category string) (string, string, string, error) {
	title = strings.TrimSpace(title)
	details = strings.TrimSpace(details)

	if title == "" {
		return "", "", "", Invalid("question title is required")
	}
	if len(title) > MaxTitleLen {
		return "", "", "", Invalid("question title must be at most %d characters", MaxTitleLen)
	}
	if len(details) > MaxDetailsLen {
		return "", "", "", Invalid("question details must be at most %d characters", MaxDetailsLen)
	}
	if category == "" {
		category = CategoryGeneral
	}
	if !ValidCategory(category) {
		return "", "", "", Invalid("unknown category %q", category)
	}
	return title, details, category, nil
}

// NormalizeAnswerInput trims and validates answer content.
func NormalizeAnswerInput(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", Invalid("answer content is required")
	}
	if len(content) > MaxAnswerLen {
		return "", Invalid("answer must be at most %d characters", MaxAnswerLen)
	}
	return content, nil
}

// SortQuestions orders a listing in place. Every order has a deterministic
// tie-break: score/count ties fall back to CreatedAt descending, then ID
// ascending.
func SortQuestions(qs []*Question, s Sort) {
	sort.Slice(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		switch s {
		case SortLatest:
			// handled below by the shared tie-break
		case SortMostLiked:
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
		case SortMostAnswered:
			if a.AnswerCount() != b.AnswerCount() {
				return a.AnswerCount() > b.AnswerCount()
			}
		default: // SortTrending
			as, bs := a.TrendingScore(), b.TrendingScore()
			if as != bs {
				return as > bs
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
