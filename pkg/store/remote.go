package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// DefaultRemoteTimeout bounds every request; a timed-out call surfaces a
// TransientError and the caller may simply discard the result.
const DefaultRemoteTimeout = 10 * time.Second

// RemoteStore implements Store against the HTTP surface served by cmd/web.
// The collections live server-side; this client is a thin projection over
// one request per operation. A cookie jar keeps the anonymous voter session
// so the vote toggle works across calls.
type RemoteStore struct {
	baseURL string
	client  *http.Client
	token   string
}

// RemoteOption configures a RemoteStore.
type RemoteOption func(*RemoteStore)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteStore) { s.client.Timeout = d }
}

// WithToken attaches a bearer token for the admin-only operations
// (DeleteQuestion, ListReports, Export, Import).
func WithToken(token string) RemoteOption {
	return func(s *RemoteStore) { s.token = token }
}

// WithHTTPClient replaces the underlying client entirely.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteStore) { s.client = c }
}

func NewRemoteStore(baseURL string, opts ...RemoteOption) (*RemoteStore, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, Invalid("invalid base URL %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	s := &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultRemoteTimeout,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ Store = (*RemoteStore)(nil)

type errorPayload struct {
	Message string `json:"message"`
}

// do runs one request and decodes the response into out (if non-nil).
// Status codes map onto the error taxonomy: 400 is the caller's fault, 404
// means the subject is gone, anything else (including transport failures) is
// transient and safe to retry.
func (s *RemoteStore) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Transient(err, "request %s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Transient(err, "decoding response from %s", path)
		}
		return nil
	}

	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Message
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &ValidationError{Msg: msg}
	case http.StatusNotFound:
		return &NotFoundError{Msg: msg}
	default:
		return &TransientError{Msg: msg}
	}
}

func (s *RemoteStore) CreateQuestion(title, details, category string) (*Question, error) {
	// Validate before going over the wire; the server checks again.
	title, details, category, err := NormalizeQuestionInput(title, details, category)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"title": title, "details": details, "category": category}
	var q Question
	if err := s.do(http.MethodPost, "/api/questions", body, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *RemoteStore) GetQuestion(id string) (*Question, error) {
	var q Question
	if err := s.do(http.MethodGet, "/api/questions/"+url.PathEscape(id), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *RemoteStore) DeleteQuestion(id string) error {
	return s.do(http.MethodDelete, "/api/questions/"+url.PathEscape(id), nil, nil)
}

func (s *RemoteStore) ListQuestions(f Filter, srt Sort) ([]*Question, error) {
	if srt == "" {
		srt = SortTrending
	}
	if !ValidSort(srt) {
		return nil, Invalid("unknown sort %q", srt)
	}
	params := url.Values{}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	params.Set("sort", string(srt))

	var qs []*Question
	if err := s.do(http.MethodGet, "/api/questions?"+params.Encode(), nil, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (s *RemoteStore) CreateAnswer(questionID, content string) (*Answer, error) {
	content, err := NormalizeAnswerInput(content)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"text": content}
	var a Answer
	path := "/api/questions/" + url.PathEscape(questionID) + "/answers"
	if err := s.do(http.MethodPost, path, body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Vote ignores voterID: the server derives the voter from the session cookie
// held by this client's jar.
func (s *RemoteStore) Vote(_ string, subject SubjectType, subjectID string, dir Direction) (VoteCount, error) {
	if !ValidSubjectType(subject) {
		return VoteCount{}, Invalid("unknown subject type %q", subject)
	}
	if !ValidDirection(dir) {
		return VoteCount{}, Invalid("unknown vote direction %q", dir)
	}
	var path string
	if subject == SubjectQuestion {
		path = "/api/questions/" + url.PathEscape(subjectID) + "/" + string(dir)
	} else {
		path = "/api/answers/" + url.PathEscape(subjectID) + "/" + string(dir)
	}
	var vc VoteCount
	if err := s.do(http.MethodPost, path, nil, &vc); err != nil {
		return VoteCount{}, err
	}
	return vc, nil
}

func (s *RemoteStore) CreateReport(itemType SubjectType, itemID, reason, details string) (*Report, error) {
	body := map[string]string{
		"type":    string(itemType),
		"id":      itemID,
		"reason":  reason,
		"details": details,
	}
	var r Report
	if err := s.do(http.MethodPost, "/api/report", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RemoteStore) ListReports() ([]*Report, error) {
	var rs []*Report
	if err := s.do(http.MethodGet, "/api/reports", nil, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *RemoteStore) Stats() (*Stats, error) {
	var st Stats
	if err := s.do(http.MethodGet, "/api/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RemoteStore) Export() (*Snapshot, error) {
	var snap Snapshot
	if err := s.do(http.MethodGet, "/api/export", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RemoteStore) Import(snap *Snapshot) error {
	if snap == nil {
		return Invalid("snapshot is required")
	}
	return s.do(http.MethodPost, "/api/import", snap, nil)
}
