package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/auth"
	"github.com/nahin/codetutor/internal/executor"
	"github.com/nahin/codetutor/internal/service"
)

// RunHandler is the HTTP face of the execution engine.
//
// It owns the whole run lifecycle: submitting code, polling session output,
// sending input, checking status, and closing sessions. The desktop client
// never blocks on these endpoints — each one answers immediately with
// whatever is available, and the client's poll loop provides the liveness.
type RunHandler struct {
	engine   executor.Executor
	sessions executor.SessionManager
	runs     *service.RunService
	logger   *slog.Logger
}

// NewRunHandler creates a RunHandler. engine and sessions are usually the
// same object (the subprocess engine implements both interfaces); keeping
// them as separate parameters keeps the handler honest about which
// capability each endpoint uses.
func NewRunHandler(
	engine executor.Executor,
	sessions executor.SessionManager,
	runs *service.RunService,
	logger *slog.Logger,
) *RunHandler {
	return &RunHandler{
		engine:   engine,
		sessions: sessions,
		runs:     runs,
		logger:   logger,
	}
}

// executeRequest is the body of POST /api/execute. ProgramID is optional —
// set when the learner runs a saved program, so history links back to it.
type executeRequest struct {
	Code      string `json:"code"`
	ProgramID string `json:"programId,omitempty"`
}

// executeResponse is a tagged union: kind is either "completed" (result is
// set) or "session" (sessionId is set). The client switches on kind to
// decide whether to display a final result or start its poll loop.
type executeResponse struct {
	Kind      string                    `json:"kind"`
	Result    *executor.ExecutionResult `json:"result,omitempty"`
	SessionID string                    `json:"sessionId,omitempty"`
}

// outputResponse is the body of the poll endpoint. Chunks is never null —
// an empty array means "nothing new yet", which is the common case.
type outputResponse struct {
	Chunks  []executor.Chunk       `json:"chunks"`
	Running bool                   `json:"running"`
	Status  executor.SessionStatus `json:"status"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type statusResponse struct {
	Running bool                   `json:"running"`
	Status  executor.SessionStatus `json:"status"`
}

// HandleExecute runs a program and reports which way it went.
//
// HTTP: POST /api/execute
//
// The engine gives the program a grace window. If it exits inside the
// window, the full result comes back in this response and no session ever
// existed from the client's point of view. If it's still alive when the
// window closes, the response carries a session ID instead and the client
// drives it via the session endpoints.
func (h *RunHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	if req.Code == "" {
		writeError(w, apperror.ValidationFailed("code", "code cannot be empty"))
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())

	outcome, err := h.engine.Execute(r.Context(), executor.ExecutionRequest{Code: req.Code})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client hung up mid-execution; nobody is listening anymore.
			return
		}
		h.logger.Error("execution failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if outcome.Interactive() {
		h.recordSessionStart(r.Context(), userID, req.ProgramID, outcome.SessionID)
		writeJSON(w, http.StatusOK, executeResponse{
			Kind:      "session",
			SessionID: outcome.SessionID,
		})
		return
	}

	h.recordDirect(r.Context(), userID, req.ProgramID, outcome.Result)
	writeJSON(w, http.StatusOK, executeResponse{
		Kind:   "completed",
		Result: outcome.Result,
	})
}

// HandlePollOutput drains a session's pending output.
//
// HTTP: GET /api/execute/sessions/{id}/output
//
// Status is read before the drain: the final drain can retire the session,
// and the response should still describe the state the chunks were produced
// under. When the completion chunk passes through here, the open history
// row for this session gets closed as a side effect.
func (h *RunHandler) HandlePollOutput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	status, err := h.sessions.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}

	chunks, err := h.sessions.PollOutput(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if chunks == nil {
		chunks = []executor.Chunk{}
	}

	for _, chunk := range chunks {
		if chunk.ExitCode != nil {
			h.finishRun(r.Context(), id, *chunk.ExitCode)
			break
		}
	}

	writeJSON(w, http.StatusOK, outputResponse{
		Chunks:  chunks,
		Running: sessionAlive(status),
		Status:  status,
	})
}

// HandleSendInput forwards one line of learner input to the program's stdin.
//
// HTTP: POST /api/execute/sessions/{id}/input
//
// 409 means the program already exited — the text had nowhere to go. The
// client should keep polling instead; the completion chunk is on its way.
func (h *RunHandler) HandleSendInput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	if err := h.sessions.SendInput(id, req.Text); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSessionStatus reports whether a session's program is still alive.
//
// HTTP: GET /api/execute/sessions/{id}
func (h *RunHandler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	status, err := h.sessions.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running: sessionAlive(status),
		Status:  status,
	})
}

// HandleCloseSession kills the session's program and discards the session.
//
// HTTP: DELETE /api/execute/sessions/{id}
//
// Always 204: closing is idempotent, and "already gone" is success from the
// client's point of view — it only ever closes because it's done looking.
func (h *RunHandler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.CloseSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRuns returns the authenticated learner's run history.
//
// HTTP: GET /api/runs (auth required)
func (h *RunHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required to view run history",
		})
		return
	}

	limit, offset := parsePagination(r)
	runs, err := h.runs.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func sessionAlive(status executor.SessionStatus) bool {
	return status == executor.StatusRunning || status == executor.StatusAwaitingInput
}

// recordDirect and recordSessionStart are best-effort: history must never
// break a run that already succeeded.
func (h *RunHandler) recordDirect(ctx context.Context, userID, programID string, result *executor.ExecutionResult) {
	if _, err := h.runs.RecordDirect(ctx, userID, programID, result); err != nil {
		h.logger.Warn("failed to record direct run", slog.String("error", err.Error()))
	}
}

func (h *RunHandler) recordSessionStart(ctx context.Context, userID, programID, sessionID string) {
	if _, err := h.runs.StartInteractive(ctx, userID, programID, sessionID); err != nil {
		h.logger.Warn("failed to record interactive run",
			slog.String("sessionID", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *RunHandler) finishRun(ctx context.Context, sessionID string, exitCode int) {
	err := h.runs.FinishBySession(ctx, sessionID, exitCode)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		h.logger.Warn("failed to finish run",
			slog.String("sessionID", sessionID),
			slog.String("error", err.Error()),
		)
	}
}
