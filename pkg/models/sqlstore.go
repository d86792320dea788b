package models

import (
	"database/sql"
	"time"

	"anonqa/pkg/store"

	"github.com/google/uuid"
)

// Store is the SQLite-backed implementation of store.Store used by the web
// server. Vote toggling runs inside a transaction with relative counter
// updates (likes = likes + 1, never read-then-set), so concurrent votes on
// the same subject cannot lose updates.
type Store struct {
	db     *DB
	policy store.ContentPolicy
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithContentPolicy replaces the default (accept-everything) policy.
func WithContentPolicy(p store.ContentPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(db *DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		policy: store.NewWordListPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateQuestion(title, details, category string) (*store.Question, error) {
	title, details, category, err := store.NormalizeQuestionInput(title, details, category)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsAcceptable(title) || !s.policy.IsAcceptable(details) {
		return nil, store.Invalid("question contains unacceptable content")
	}

	q := &store.Question{
		ID:        uuid.NewString(),
		Title:     title,
		Details:   details,
		Category:  category,
		CreatedAt: s.now().UTC(),
		Answers:   []*store.Answer{},
	}
	_, err = s.db.Exec(`
		INSERT INTO questions (id, title, details, category, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, q.ID, q.Title, q.Details, q.Category, q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Store) GetQuestion(id string) (*store.Question, error) {
	var q store.Question
	err := s.db.QueryRow(`
		SELECT id, title, details, category, created_at, likes, dislikes
		FROM questions
		WHERE id = ?
	`, id).Scan(&q.ID, &q.Title, &q.Details, &q.Category, &q.CreatedAt, &q.Likes, &q.Dislikes)
	if err == sql.ErrNoRows {
		return nil, store.NotFound("question %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	answers, err := s.loadAnswers(q.ID)
	if err != nil {
		return nil, err
	}
	q.Answers = answers
	return &q, nil
}

// loadAnswers returns a question's answers in submission order.
func (s *Store) loadAnswers(questionID string) ([]*store.Answer, error) {
	rows, err := s.db.Query(`
		SELECT id, question_id, content, created_at, likes, dislikes
		FROM answers
		WHERE question_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []*store.Answer{}
	for rows.Next() {
		var a store.Answer
		err = rows.Scan(&a.ID, &a.QuestionID, &a.Content, &a.CreatedAt, &a.Likes, &a.Dislikes)
		if err != nil {
			return nil, err
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}

func (s *Store) DeleteQuestion(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	result, err := tx.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n == 0 {
		tx.Rollback()
		return store.NotFound("question %s not found", id)
	}

	// Cascade to answers. Votes and reports keep their rows as orphaned
	// references for audit.
	if _, err := tx.Exec(`DELETE FROM answers WHERE question_id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *Store) ListQuestions(f store.Filter, srt store.Sort) ([]*store.Question, error) {
	if srt == "" {
		srt = store.SortTrending
	}
	if !store.ValidSort(srt) {
		return nil, store.Invalid("unknown sort %q", srt)
	}

	query := `
		SELECT id, title, details, category, created_at, likes, dislikes
		FROM questions
	`
	args := []any{}
	if f.Category != "" {
		query += ` WHERE category = ?`
		args = append(args, f.Category)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []*store.Question{}
	for rows.Next() {
		var q store.Question
		err = rows.Scan(&q.ID, &q.Title, &q.Details, &q.Category, &q.CreatedAt, &q.Likes, &q.Dislikes)
		if err != nil {
			return nil, err
		}
		questions = append(questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, q := range questions {
		answers, err := s.loadAnswers(q.ID)
		if err != nil {
			return nil, err
		}
		q.Answers = answers
	}

	// One authoritative sort implementation shared with the other backends.
	store.SortQuestions(questions, srt)
	return questions, nil
}

func (s *Store) CreateAnswer(questionID, content string) (*store.Answer, error) {
	content, err := store.NormalizeAnswerInput(content)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsAcceptable(content) {
		return nil, store.Invalid("answer contains unacceptable content")
	}

	var exists bool
	err = s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM questions WHERE id = ?)`, questionID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.NotFound("question %s not found", questionID)
	}

	a := &store.Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}
	_, err = s.db.Exec(`
		INSERT INTO answers (id, question_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.QuestionID, a.Content, a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) Vote(voterID string, subject store.SubjectType, subjectID string, dir store.Direction) (store.VoteCount, error) {
	if !store.ValidSubjectType(subject) {
		return store.VoteCount{}, store.Invalid("unknown subject type %q", subject)
	}
	if !store.ValidDirection(dir) {
		return store.VoteCount{}, store.Invalid("unknown vote direction %q", dir)
	}

	table := "questions"
	if subject == store.SubjectAnswer {
		table = "answers"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return store.VoteCount{}, err
	}

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, subjectID).Scan(&exists)
	if err != nil {
		tx.Rollback()
		return store.VoteCount{}, err
	}
	if !exists {
		tx.Rollback()
		return store.VoteCount{}, store.NotFound("%s %s not found", subject, subjectID)
	}

	var prev string
	err = tx.QueryRow(`
		SELECT direction FROM votes
		WHERE voter_id = ? AND subject_type = ? AND subject_id = ?
	`, voterID, subject, subjectID).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		tx.Rollback()
		return store.VoteCount{}, err
	}
	hadVote := err == nil

	switch {
	case hadVote && prev == string(dir):
		// Same direction again: retract.
		_, err = tx.Exec(`
			DELETE FROM votes
			WHERE voter_id = ? AND subject_type = ? AND subject_id = ?
		`, voterID, subject, subjectID)
		if err == nil {
			err = decrementCounter(tx, table, dir, subjectID)
		}
	case hadVote:
		// Opposite direction: switch.
		_, err = tx.Exec(`
			UPDATE votes SET direction = ?, created_at = ?
			WHERE voter_id = ? AND subject_type = ? AND subject_id = ?
		`, dir, s.now().UTC(), voterID, subject, subjectID)
		if err == nil {
			err = decrementCounter(tx, table, store.Direction(prev), subjectID)
		}
		if err == nil {
			err = incrementCounter(tx, table, dir, subjectID)
		}
	default:
		_, err = tx.Exec(`
			INSERT INTO votes (voter_id, subject_type, subject_id, direction, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, voterID, subject, subjectID, dir, s.now().UTC())
		if err == nil {
			err = incrementCounter(tx, table, dir, subjectID)
		}
	}
	if err != nil {
		tx.Rollback()
		return store.VoteCount{}, err
	}

	var vc store.VoteCount
	err = tx.QueryRow(`SELECT likes, dislikes FROM `+table+` WHERE id = ?`, subjectID).Scan(&vc.Likes, &vc.Dislikes)
	if err != nil {
		tx.Rollback()
		return store.VoteCount{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.VoteCount{}, err
	}
	return vc, nil
}

func incrementCounter(tx *sql.Tx, table string, dir store.Direction, id string) error {
	column := "likes"
	if dir == store.Dislike {
		column = "dislikes"
	}
	_, err := tx.Exec(`UPDATE `+table+` SET `+column+` = `+column+` + 1 WHERE id = ?`, id)
	return err
}

func decrementCounter(tx *sql.Tx, table string, dir store.Direction, id string) error {
	column := "likes"
	if dir == store.Dislike {
		column = "dislikes"
	}
	_, err := tx.Exec(`UPDATE `+table+` SET `+column+` = MAX(`+column+` - 1, 0) WHERE id = ?`, id)
	return err
}

func (s *Store) CreateReport(itemType store.SubjectType, itemID, reason, details string) (*store.Report, error) {
	if !store.ValidSubjectType(itemType) {
		return nil, store.Invalid("unknown item type %q", itemType)
	}
	if itemID == "" {
		return nil, store.Invalid("item id is required")
	}
	if !store.ValidReportReason(reason) {
		return nil, store.Invalid("unknown report reason %q", reason)
	}

	r := &store.Report{
		ID:        uuid.NewString(),
		ItemType:  itemType,
		ItemID:    itemID,
		Reason:    reason,
		Details:   details,
		CreatedAt: s.now().UTC(),
		Status:    store.ReportStatusPending,
	}
	_, err := s.db.Exec(`
		INSERT INTO reports (id, item_type, item_id, reason, details, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ItemType, r.ItemID, r.Reason, r.Details, r.CreatedAt, r.Status)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListReports() ([]*store.Report, error) {
	rows, err := s.db.Query(`
		SELECT id, item_type, item_id, reason, details, created_at, status
		FROM reports
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*store.Report{}
	for rows.Next() {
		var r store.Report
		err = rows.Scan(&r.ID, &r.ItemType, &r.ItemID, &r.Reason, &r.Details, &r.CreatedAt, &r.Status)
		if err != nil {
			return nil, err
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

func (s *Store) Stats() (*store.Stats, error) {
	st := &store.Stats{CategoryCounts: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&st.TotalQuestions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM answers`).Scan(&st.TotalAnswers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&st.TotalReports); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM questions GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		st.CategoryCounts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE created_at > ?`, weekAgo).Scan(&st.QuestionsThisWeek); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM answers WHERE created_at > ?`, weekAgo).Scan(&st.AnswersThisWeek); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) Export() (*store.Snapshot, error) {
	snap := &store.Snapshot{
		Reports:    []*store.Report{},
		Votes:      []store.VoteRecord{},
		ExportedAt: s.now().UTC(),
	}

	questions, err := s.ListQuestions(store.Filter{}, store.SortLatest)
	if err != nil {
		return nil, err
	}
	snap.Questions = questions

	reports, err := s.ListReports()
	if err != nil {
		return nil, err
	}
	snap.Reports = reports

	rows, err := s.db.Query(`SELECT voter_id, subject_type, subject_id, direction FROM votes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v store.VoteRecord
		if err := rows.Scan(&v.VoterID, &v.SubjectType, &v.SubjectID, &v.Direction); err != nil {
			return nil, err
		}
		snap.Votes = append(snap.Votes, v)
	}
	return snap, rows.Err()
}

func (s *Store) Import(snap *store.Snapshot) error {
	if snap == nil {
		return store.Invalid("snapshot is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	for _, table := range []string{"votes", "reports", "answers", "questions"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			tx.Rollback()
			return err
		}
	}

	now := s.now().UTC()
	for _, q := range snap.Questions {
		_, err := tx.Exec(`
			INSERT INTO questions (id, title, details, category, created_at, likes, dislikes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, q.ID, q.Title, q.Details, q.Category, q.CreatedAt, q.Likes, q.Dislikes)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, a := range q.Answers {
			_, err := tx.Exec(`
				INSERT INTO answers (id, question_id, content, created_at, likes, dislikes)
				VALUES (?, ?, ?, ?, ?, ?)
			`, a.ID, q.ID, a.Content, a.CreatedAt, a.Likes, a.Dislikes)
			if err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	for _, r := range snap.Reports {
		_, err := tx.Exec(`
			INSERT INTO reports (id, item_type, item_id, reason, details, created_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.ItemType, r.ItemID, r.Reason, r.Details, r.CreatedAt, r.Status)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, v := range snap.Votes {
		_, err := tx.Exec(`
			INSERT INTO votes (voter_id, subject_type, subject_id, direction, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, v.VoterID, v.SubjectType, v.SubjectID, v.Direction, now)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
