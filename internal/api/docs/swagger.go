package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// SessionResponse represents a creation session snapshot
type SessionResponse struct {
	ID        string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID    string `json:"user_id" example:"user-123"`
	State     string `json:"state" example:"loading"`
	Gender    string `json:"gender" example:"female"`
	Attempts  int    `json:"attempts" example:"0"`
	CreatedAt string `json:"created_at" example:"2025-01-01T00:00:00Z"`
	UpdatedAt string `json:"updated_at" example:"2025-01-01T00:00:00Z"`
}

// CreateSessionRequest represents the session start body
type CreateSessionRequest struct {
	UserID string `json:"user_id" example:"user-123"`
	Gender string `json:"gender" example:"female"`
}

// AvatarRecordResponse represents a persisted avatar with its score
type AvatarRecordResponse struct {
	QualityScore int `json:"quality_score" example:"85"`
}

// ResolveResponse represents a resolved asset URL
type ResolveResponse struct {
	RPMID   string `json:"rpm_id" example:"abc123"`
	Context string `json:"context" example:"display"`
	URL     string `json:"url" example:"https://models.readyplayer.me/abc123.glb?v=3&t=1735689600"`
	Version int    `json:"version" example:"3"`
}

// ResumeURLResponse represents the relaunch resume URL
type ResumeURLResponse struct {
	UserID string `json:"user_id" example:"user-123"`
	URL    string `json:"url" example:"https://models.readyplayer.me/abc123.glb?v=3"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"SESSION_NOT_FOUND"`
	Message string `json:"message" example:"Session not found"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Avatar Engine API",
		Version:     "v1.0.0",
		Description: "Avatar creation and resolution pipeline: drives the embedded avatar-creation surface, normalizes and persists avatar records, resolves assets per usage context",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/sessions - Start session
		endpoint.New(
			endpoint.POST,
			"/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start an avatar creation session"),
			endpoint.WithDescription("Starts a session that drives the embedded avatar-creation surface over a message channel"),
			endpoint.WithBody(CreateSessionRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "201", "Session started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
			}),
		),

		// GET /v1/sessions/{id} - Session state
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get session state"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithRequired())),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Current session snapshot"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found"}, "404", "Not Found"),
			}),
		),

		// POST /v1/sessions/{id}/messages - Relay channel message
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/messages",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Relay a raw creation-surface message"),
			endpoint.WithDescription("HTTP alternative to the websocket channel; the body is handed to the session unmodified"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithRequired())),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "202", "Message accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found"}, "404", "Not Found"),
			}),
		),

		// POST /v1/sessions/{id}/retry - Retry
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/retry",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Retry a failed or timed out session"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithRequired())),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "202", "Retry accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found"}, "404", "Not Found"),
			}),
		),

		// POST /v1/sessions/{id}/skip - Skip to fallback
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/skip",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Skip creation and complete with the default avatar"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithRequired())),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "202", "Skip accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found"}, "404", "Not Found"),
			}),
		),

		// DELETE /v1/sessions/{id} - Cancel
		endpoint.New(
			endpoint.DELETE,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Cancel a session"),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithRequired())),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "204", "Session cancelled"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/avatars/{rpmId} - Avatar record
		endpoint.New(
			endpoint.GET,
			"/avatars/{rpmId}",
			endpoint.WithTags("Avatars"),
			endpoint.WithSummary("Get an avatar record with its quality score"),
			endpoint.WithParams(parameter.StrParam("rpmId", parameter.Path, parameter.WithRequired())),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AvatarRecordResponse{}, "200", "Avatar record"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "AVATAR_NOT_FOUND", Message: "Avatar not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/avatars/{rpmId}/resolve - Resolve asset URL
		endpoint.New(
			endpoint.GET,
			"/avatars/{rpmId}/resolve",
			endpoint.WithTags("Avatars"),
			endpoint.WithSummary("Resolve the best asset URL for a usage context"),
			endpoint.WithParams(
				parameter.StrParam("rpmId", parameter.Path, parameter.WithRequired()),
				parameter.StrParam("context", parameter.Query),
				parameter.StrParam("versioned", parameter.Query),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ResolveResponse{}, "200", "Resolved asset URL"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "AVATAR_NOT_FOUND", Message: "Avatar not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/users/{userId}/avatar-url - Resume URL
		endpoint.New(
			endpoint.GET,
			"/users/{userId}/avatar-url",
			endpoint.WithTags("Avatars"),
			endpoint.WithSummary("Get the latest resolved avatar URL for a user"),
			endpoint.WithParams(parameter.StrParam("userId", parameter.Path, parameter.WithRequired())),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ResumeURLResponse{}, "200", "Latest avatar URL"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "AVATAR_NOT_FOUND", Message: "Avatar not found"}, "404", "Not Found"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)
	return sw
}
