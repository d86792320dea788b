package api

import (
	"encoding/json"
	"log"
	"net/http"

	"anonqa/pkg/notify"
	"anonqa/pkg/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

const sessionName = "anonqa-session"

// API serves the board's HTTP surface over any store.Store implementation.
type API struct {
	Store     store.Store
	Sessions  *sessions.CookieStore
	Validator *validator.Validate
	Notifier  notify.Notifier
	Auth      *Authenticator
}

func New(s store.Store, sessionStore *sessions.CookieStore, auth *Authenticator, notifier notify.Notifier) *API {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &API{
		Store:     s,
		Sessions:  sessionStore,
		Validator: validator.New(),
		Notifier:  notifier,
		Auth:      auth,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Message: message})
}

// respondStoreError translates the store's error taxonomy onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case store.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case store.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case store.IsTransient(err):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("store error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// voterID resolves the caller's anonymous voter key from the session cookie,
// minting one on first contact. This is the only identity in the system.
func (api *API) voterID(w http.ResponseWriter, r *http.Request) (string, error) {
	session, _ := api.Sessions.Get(r, sessionName)
	if id, ok := session.Values["voter_id"].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	session.Values["voter_id"] = id
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// Router wires every endpoint; cmd/web and the tests share it.
func (api *API) Router() *mux.Router {
	r := mux.NewRouter()

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(CORSMiddleware)

	apiRouter.HandleFunc("/auth/login", api.Login).Methods("POST", "OPTIONS")

	apiRouter.HandleFunc("/questions", api.ListQuestions).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/questions", api.CreateQuestion).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/questions/{id}", api.GetQuestion).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/questions/{id}/answers", api.CreateAnswer).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/questions/{id}/{dir:like|dislike}", api.VoteQuestion).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/questions/{qid}/answers/{id}/{dir:like|dislike}", api.VoteAnswer).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/answers/{id}/{dir:like|dislike}", api.VoteAnswer).Methods("POST", "OPTIONS")

	apiRouter.HandleFunc("/report", api.CreateReport).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/stats", api.GetStats).Methods("GET", "OPTIONS")

	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(api.Auth.Middleware)
	protected.HandleFunc("/questions/{id}", api.DeleteQuestion).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/reports", api.ListReports).Methods("GET", "OPTIONS")
	protected.HandleFunc("/export", api.ExportData).Methods("GET", "OPTIONS")
	protected.HandleFunc("/import", api.ImportData).Methods("POST", "OPTIONS")

	return r
}

// GET /api/questions
func (api *API) ListQuestions(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{Category: r.URL.Query().Get("category")}
	sort := store.Sort(r.URL.Query().Get("sort"))

	questions, err := api.Store.ListQuestions(filter, sort)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

// GET /api/questions/{id}
func (api *API) GetQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := api.Store.GetQuestion(mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, question)
}

// POST /api/questions
func (api *API) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.Validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	question, err := api.Store.CreateQuestion(req.Title, req.Details, req.Category)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, question)
}

// DELETE /api/questions/{id}
func (api *API) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := api.Store.DeleteQuestion(mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// POST /api/questions/{id}/answers
func (api *API) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req CreateAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.Validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := api.Store.CreateAnswer(mux.Vars(r)["id"], req.Text)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, answer)
}

// POST /api/questions/{id}/like and /api/questions/{id}/dislike
func (api *API) VoteQuestion(w http.ResponseWriter, r *http.Request) {
	api.vote(w, r, store.SubjectQuestion)
}

// POST /api/answers/{id}/like, /api/answers/{id}/dislike and the nested
// /api/questions/{qid}/answers/{id}/... variants.
func (api *API) VoteAnswer(w http.ResponseWriter, r *http.Request) {
	api.vote(w, r, store.SubjectAnswer)
}

func (api *API) vote(w http.ResponseWriter, r *http.Request, subject store.SubjectType) {
	vars := mux.Vars(r)

	voter, err := api.voterID(w, r)
	if err != nil {
		log.Printf("Error saving voter session: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	counts, err := api.Store.Vote(voter, subject, vars["id"], store.Direction(vars["dir"]))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// POST /api/report
func (api *API) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.Validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := api.Store.CreateReport(store.SubjectType(req.Type), req.ID, req.Reason, req.Details)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	// The report stands regardless of whether the notification goes out.
	if err := api.Notifier.ReportSubmitted(report); err != nil {
		log.Printf("Error sending report notification: %v", err)
	}

	respondJSON(w, http.StatusCreated, report)
}

// GET /api/reports
func (api *API) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := api.Store.ListReports()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// GET /api/stats
func (api *API) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.Store.Stats()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GET /api/export
func (api *API) ExportData(w http.ResponseWriter, r *http.Request) {
	snap, err := api.Store.Export()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// POST /api/import
func (api *API) ImportData(w http.ResponseWriter, r *http.Request) {
	var snap store.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.Store.Import(&snap); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
