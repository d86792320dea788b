package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type voteKey struct {
	voterID     string
	subjectType SubjectType
	subjectID   string
}

// MemoryStore keeps all collections in process memory. It is the local
// deployment shape of the Store and the fixture backend in tests. A single
// mutex guards every collection; the contract only promises a single logical
// writer, but the lock makes concurrent use safe anyway.
type MemoryStore struct {
	mu        sync.RWMutex
	questions []*Question
	byID      map[string]*Question
	answers   map[string]*Answer
	votes     map[voteKey]Direction
	reports   []*Report

	policy ContentPolicy
	now    func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithContentPolicy replaces the default (accept-everything) policy.
func WithContentPolicy(p ContentPolicy) MemoryOption {
	return func(s *MemoryStore) { s.policy = p }
}

// WithClock replaces the time source, for tests that need distinct or fixed
// creation instants.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]*Question),
		answers: make(map[string]*Answer),
		votes:   make(map[voteKey]Direction),
		policy:  NewWordListPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

func newID() string {
	return uuid.NewString()
}

func (s *MemoryStore) CreateQuestion(title, details, category string) (*Question, error) {
	title, details, category, err := NormalizeQuestionInput(title, details, category)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsAcceptable(title) || !s.policy.IsAcceptable(details) {
		return nil, Invalid("question contains unacceptable content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := &Question{
		ID:        newID(),
		Title:     title,
		Details:   details,
		Category:  category,
		CreatedAt: s.now().UTC(),
		Answers:   []*Answer{},
	}
	s.questions = append(s.questions, q)
	s.byID[q.ID] = q
	return cloneQuestion(q), nil
}

func (s *MemoryStore) GetQuestion(id string) (*Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.byID[id]
	if !ok {
		return nil, NotFound("question %s not found", id)
	}
	return cloneQuestion(q), nil
}

func (s *MemoryStore) DeleteQuestion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.byID[id]
	if !ok {
		return NotFound("question %s not found", id)
	}
	delete(s.byID, id)
	for _, a := range q.Answers {
		delete(s.answers, a.ID)
	}
	for i, cand := range s.questions {
		if cand.ID == id {
			s.questions = append(s.questions[:i], s.questions[i+1:]...)
			break
		}
	}
	// Votes and reports referencing the question stay behind as orphaned
	// references; they are keyed by id and never dereferenced again.
	return nil
}

func (s *MemoryStore) ListQuestions(f Filter, srt Sort) ([]*Question, error) {
	if srt == "" {
		srt = SortTrending
	}
	if !ValidSort(srt) {
		return nil, Invalid("unknown sort %q", srt)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Question, 0, len(s.questions))
	for _, q := range s.questions {
		if f.Category != "" && q.Category != f.Category {
			continue
		}
		out = append(out, cloneQuestion(q))
	}
	SortQuestions(out, srt)
	return out, nil
}

func (s *MemoryStore) CreateAnswer(questionID, content string) (*Answer, error) {
	content, err := NormalizeAnswerInput(content)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsAcceptable(content) {
		return nil, Invalid("answer contains unacceptable content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.byID[questionID]
	if !ok {
		return nil, NotFound("question %s not found", questionID)
	}
	a := &Answer{
		ID:         newID(),
		QuestionID: questionID,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}
	q.Answers = append(q.Answers, a)
	s.answers[a.ID] = a
	out := *a
	return &out, nil
}

func (s *MemoryStore) Vote(voterID string, subject SubjectType, subjectID string, dir Direction) (VoteCount, error) {
	if !ValidSubjectType(subject) {
		return VoteCount{}, Invalid("unknown subject type %q", subject)
	}
	if !ValidDirection(dir) {
		return VoteCount{}, Invalid("unknown vote direction %q", dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	likes, dislikes, err := s.counters(subject, subjectID)
	if err != nil {
		return VoteCount{}, err
	}

	key := voteKey{voterID: voterID, subjectType: subject, subjectID: subjectID}
	prev, voted := s.votes[key]

	switch {
	case voted && prev == dir:
		// Same direction again: retract.
		decrement(counterFor(dir, likes, dislikes))
		delete(s.votes, key)
	case voted:
		// Opposite direction: switch.
		decrement(counterFor(prev, likes, dislikes))
		*counterFor(dir, likes, dislikes)++
		s.votes[key] = dir
	default:
		*counterFor(dir, likes, dislikes)++
		s.votes[key] = dir
	}

	return VoteCount{Likes: *likes, Dislikes: *dislikes}, nil
}

// counters resolves the like/dislike fields for a subject. Caller holds the
// lock.
func (s *MemoryStore) counters(subject SubjectType, subjectID string) (*int, *int, error) {
	switch subject {
	case SubjectQuestion:
		q, ok := s.byID[subjectID]
		if !ok {
			return nil, nil, NotFound("question %s not found", subjectID)
		}
		return &q.Likes, &q.Dislikes, nil
	default:
		a, ok := s.answers[subjectID]
		if !ok {
			return nil, nil, NotFound("answer %s not found", subjectID)
		}
		return &a.Likes, &a.Dislikes, nil
	}
}

func counterFor(dir Direction, likes, dislikes *int) *int {
	if dir == Like {
		return likes
	}
	return dislikes
}

func decrement(counter *int) {
	if *counter > 0 {
		*counter--
	}
}

func (s *MemoryStore) CreateReport(itemType SubjectType, itemID, reason, details string) (*Report, error) {
	if !ValidSubjectType(itemType) {
		return nil, Invalid("unknown item type %q", itemType)
	}
	if itemID == "" {
		return nil, Invalid("item id is required")
	}
	if !ValidReportReason(reason) {
		return nil, Invalid("unknown report reason %q", reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// No existence check on the item: reports may outlive (or predate) the
	// content they point at.
	r := &Report{
		ID:        newID(),
		ItemType:  itemType,
		ItemID:    itemID,
		Reason:    reason,
		Details:   strings.TrimSpace(details),
		CreatedAt: s.now().UTC(),
		Status:    ReportStatusPending,
	}
	s.reports = append(s.reports, r)
	out := *r
	return &out, nil
}

func (s *MemoryStore) ListReports() ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) Stats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{
		TotalQuestions: len(s.questions),
		TotalReports:   len(s.reports),
		CategoryCounts: make(map[string]int),
	}
	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	for _, q := range s.questions {
		st.CategoryCounts[q.Category]++
		st.TotalAnswers += len(q.Answers)
		if q.CreatedAt.After(weekAgo) {
			st.QuestionsThisWeek++
		}
		for _, a := range q.Answers {
			if a.CreatedAt.After(weekAgo) {
				st.AnswersThisWeek++
			}
		}
	}
	return st, nil
}

func (s *MemoryStore) Export() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Questions:  make([]*Question, 0, len(s.questions)),
		Reports:    make([]*Report, 0, len(s.reports)),
		Votes:      make([]VoteRecord, 0, len(s.votes)),
		ExportedAt: s.now().UTC(),
	}
	for _, q := range s.questions {
		snap.Questions = append(snap.Questions, cloneQuestion(q))
	}
	for _, r := range s.reports {
		c := *r
		snap.Reports = append(snap.Reports, &c)
	}
	for k, d := range s.votes {
		snap.Votes = append(snap.Votes, VoteRecord{
			VoterID:     k.voterID,
			SubjectType: k.subjectType,
			SubjectID:   k.subjectID,
			Direction:   d,
		})
	}
	return snap, nil
}

func (s *MemoryStore) Import(snap *Snapshot) error {
	if snap == nil {
		return Invalid("snapshot is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions = nil
	s.byID = make(map[string]*Question)
	s.answers = make(map[string]*Answer)
	s.votes = make(map[voteKey]Direction)
	s.reports = nil

	for _, q := range snap.Questions {
		c := cloneQuestion(q)
		s.questions = append(s.questions, c)
		s.byID[c.ID] = c
		for _, a := range c.Answers {
			s.answers[a.ID] = a
		}
	}
	for _, r := range snap.Reports {
		c := *r
		s.reports = append(s.reports, &c)
	}
	for _, v := range snap.Votes {
		key := voteKey{voterID: v.VoterID, subjectType: v.SubjectType, subjectID: v.SubjectID}
		s.votes[key] = v.Direction
	}
	return nil
}

// cloneQuestion deep-copies a question so callers can't reach store-owned
// state.
func cloneQuestion(q *Question) *Question {
	c := *q
	c.Answers = make([]*Answer, len(q.Answers))
	for i, a := range q.Answers {
		ac := *a
		c.Answers[i] = &ac
	}
	return &c
}
