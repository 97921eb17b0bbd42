package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/executor"
	"github.com/nahin/codetutor/internal/handler"
	"github.com/nahin/codetutor/internal/model"
	"github.com/nahin/codetutor/internal/repository"
	"github.com/nahin/codetutor/internal/service"
)

// mockEngine implements both executor.Executor and executor.SessionManager,
// the same shape the real subprocess engine has, without any child process.
type mockEngine struct {
	capturedReq executor.ExecutionRequest
	outcome     *executor.Outcome
	execErr     error

	chunks    []executor.Chunk
	pollErr   error
	status    executor.SessionStatus
	statusErr error
	inputErr  error

	inputs []string
	closed []string
}

func (m *mockEngine) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.Outcome, error) {
	m.capturedReq = req
	if m.execErr != nil {
		return nil, m.execErr
	}
	return m.outcome, nil
}

func (m *mockEngine) PollOutput(id string) ([]executor.Chunk, error) {
	if m.pollErr != nil {
		return nil, m.pollErr
	}
	drained := m.chunks
	m.chunks = nil
	return drained, nil
}

func (m *mockEngine) SendInput(id, text string) error {
	if m.inputErr != nil {
		return m.inputErr
	}
	m.inputs = append(m.inputs, text)
	return nil
}

func (m *mockEngine) IsRunning(id string) (bool, error) {
	if m.statusErr != nil {
		return false, m.statusErr
	}
	return m.status == executor.StatusRunning, nil
}

func (m *mockEngine) Status(id string) (executor.SessionStatus, error) {
	if m.statusErr != nil {
		return "", m.statusErr
	}
	return m.status, nil
}

func (m *mockEngine) CloseSession(id string) {
	m.closed = append(m.closed, id)
}

// memRunRepo is a minimal in-memory repository.RunRepository so the handler
// tests can observe history side effects.
type memRunRepo struct {
	runs []*model.Run
}

func (r *memRunRepo) CreateRun(_ context.Context, run *model.Run) error {
	run.ID = "run-1"
	run.CreatedAt = time.Now()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memRunRepo) FinishRun(_ context.Context, id string, exitCode int, durationMs int64) error {
	for _, run := range r.runs {
		if run.ID == id {
			run.ExitCode = &exitCode
			run.DurationMs = &durationMs
			return nil
		}
	}
	return apperror.NotFound("run", id)
}

func (r *memRunRepo) GetRunBySessionID(_ context.Context, sessionID string) (*model.Run, error) {
	for _, run := range r.runs {
		if run.SessionID == sessionID && sessionID != "" {
			return run, nil
		}
	}
	return nil, apperror.NotFound("run", sessionID)
}

func (r *memRunRepo) ListRuns(_ context.Context, _ repository.ListOptions) ([]model.Run, error) {
	out := make([]model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, nil
}

func newRunHandler(engine *mockEngine) (*handler.RunHandler, *memRunRepo) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := &memRunRepo{}
	runs := service.NewRunService(repo, logger)
	return handler.NewRunHandler(engine, engine, runs, logger), repo
}

func TestHandleExecute_Direct(t *testing.T) {
	engine := &mockEngine{
		outcome: &executor.Outcome{
			Result: &executor.ExecutionResult{
				Stdout:   "Hello World\n",
				ExitCode: 0,
				Duration: 100 * time.Millisecond,
			},
		},
	}
	h, repo := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/execute",
		bytes.NewBufferString(`{"code":"print('Hello World')"}`))
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Kind   string                    `json:"kind"`
		Result *executor.ExecutionResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "completed", res.Kind)
	assert.Equal(t, "Hello World\n", res.Result.Stdout)
	assert.Equal(t, "print('Hello World')", engine.capturedReq.Code)

	// History row inserted, already finished.
	require.Len(t, repo.runs, 1)
	assert.Equal(t, model.RunModeDirect, repo.runs[0].Mode)
	assert.True(t, repo.runs[0].Finished())
}

func TestHandleExecute_BecomesSession(t *testing.T) {
	engine := &mockEngine{
		outcome: &executor.Outcome{SessionID: "sess-42"},
	}
	h, repo := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/execute",
		bytes.NewBufferString(`{"code":"input()"}`))
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Kind      string `json:"kind"`
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "session", res.Kind)
	assert.Equal(t, "sess-42", res.SessionID)

	// History row inserted open — finished later by the poll handler.
	require.Len(t, repo.runs, 1)
	assert.Equal(t, model.RunModeInteractive, repo.runs[0].Mode)
	assert.False(t, repo.runs[0].Finished())
}

func TestHandleExecute_BadRequests(t *testing.T) {
	for name, body := range map[string]string{
		"invalid JSON": `{"code":`,
		"empty code":   `{"code":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			h, _ := newRunHandler(&mockEngine{})
			req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()

			h.HandleExecute(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandleExecute_SpawnFailure(t *testing.T) {
	engine := &mockEngine{execErr: apperror.Unavailable("interpreter not available")}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/execute",
		bytes.NewBufferString(`{"code":"print(1)"}`))
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlePollOutput_DeliversChunks(t *testing.T) {
	engine := &mockEngine{
		status: executor.StatusRunning,
		chunks: []executor.Chunk{
			{Stream: executor.StreamStdout, Text: "tick\n"},
		},
	}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/execute/sessions/sess-1/output", nil)
	req.SetPathValue("id", "sess-1")
	rr := httptest.NewRecorder()

	h.HandlePollOutput(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Chunks  []executor.Chunk `json:"chunks"`
		Running bool             `json:"running"`
		Status  string           `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res.Running)
	assert.Equal(t, "running", res.Status)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "tick\n", res.Chunks[0].Text)
}

func TestHandlePollOutput_EmptyDrainIsNotNull(t *testing.T) {
	engine := &mockEngine{status: executor.StatusRunning}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/execute/sessions/sess-1/output", nil)
	req.SetPathValue("id", "sess-1")
	rr := httptest.NewRecorder()

	h.HandlePollOutput(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	// The client iterates chunks unconditionally; null would break it.
	assert.Contains(t, rr.Body.String(), `"chunks":[]`)
}

func TestHandlePollOutput_CompletionClosesRun(t *testing.T) {
	exitCode := 3
	engine := &mockEngine{
		outcome: &executor.Outcome{SessionID: "sess-9"},
		status:  executor.StatusCompleted,
		chunks: []executor.Chunk{
			{Stream: executor.StreamStdout, Text: "bye\n"},
			{Stream: executor.StreamSystem, Text: "\n[program exited with code 3]", ExitCode: &exitCode},
		},
	}
	h, repo := newRunHandler(engine)

	// Start the session so an open history row exists.
	execReq := httptest.NewRequest(http.MethodPost, "/api/execute",
		bytes.NewBufferString(`{"code":"input()"}`))
	h.HandleExecute(httptest.NewRecorder(), execReq)
	require.Len(t, repo.runs, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/execute/sessions/sess-9/output", nil)
	req.SetPathValue("id", "sess-9")
	rr := httptest.NewRecorder()

	h.HandlePollOutput(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, repo.runs[0].Finished(), "completion chunk should close the history row")
	assert.Equal(t, 3, *repo.runs[0].ExitCode)
}

func TestHandlePollOutput_UnknownSession(t *testing.T) {
	engine := &mockEngine{statusErr: apperror.NotFound("session", "ghost")}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/execute/sessions/ghost/output", nil)
	req.SetPathValue("id", "ghost")
	rr := httptest.NewRecorder()

	h.HandlePollOutput(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleSendInput(t *testing.T) {
	engine := &mockEngine{status: executor.StatusRunning}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/execute/sessions/sess-1/input",
		bytes.NewBufferString(`{"text":"alice"}`))
	req.SetPathValue("id", "sess-1")
	rr := httptest.NewRecorder()

	h.HandleSendInput(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, engine.inputs, 1)
	assert.Equal(t, "alice", engine.inputs[0])
}

func TestHandleSendInput_ProgramAlreadyExited(t *testing.T) {
	engine := &mockEngine{inputErr: apperror.ClosedPipe("sess-1")}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/execute/sessions/sess-1/input",
		bytes.NewBufferString(`{"text":"too late"}`))
	req.SetPathValue("id", "sess-1")
	rr := httptest.NewRecorder()

	h.HandleSendInput(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleSessionStatus(t *testing.T) {
	engine := &mockEngine{status: executor.StatusAwaitingInput}
	h, _ := newRunHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/execute/sessions/sess-1", nil)
	req.SetPathValue("id", "sess-1")
	rr := httptest.NewRecorder()

	h.HandleSessionStatus(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Running bool   `json:"running"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res.Running)
	assert.Equal(t, "awaiting_input", res.Status)
}

func TestHandleCloseSession_AlwaysNoContent(t *testing.T) {
	engine := &mockEngine{}
	h, _ := newRunHandler(engine)

	// Close twice — the second close of a gone session is still a 204.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/execute/sessions/sess-1", nil)
		req.SetPathValue("id", "sess-1")
		rr := httptest.NewRecorder()

		h.HandleCloseSession(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
	assert.Equal(t, []string{"sess-1", "sess-1"}, engine.closed)
}

func TestHandleListRuns_RequiresAuth(t *testing.T) {
	h, _ := newRunHandler(&mockEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rr := httptest.NewRecorder()

	h.HandleListRuns(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
