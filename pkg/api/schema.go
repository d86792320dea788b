package api

// Request Types
type CreateQuestionRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Details  string `json:"details" validate:"omitempty,max=1000"`
	Category string `json:"category" validate:"omitempty,max=50"`
}

type CreateAnswerRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type ReportRequest struct {
	Type    string `json:"type" validate:"required,oneof=question answer"`
	ID      string `json:"id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
	Details string `json:"details" validate:"omitempty,max=1000"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Response Types
type LoginResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the uniform failure shape: a human-readable message with a
// non-2xx status.
type ErrorResponse struct {
	Message string `json:"message"`
}
