package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/auth"
	"github.com/nahin/codetutor/internal/service"
)

// ProgramHandler manages CRUD for saved programs. All business rules
// (validation, ownership) live in ProgramService; this layer only parses
// HTTP and formats responses.
type ProgramHandler struct {
	programs *service.ProgramService
	logger   *slog.Logger
}

// NewProgramHandler creates a new ProgramHandler.
func NewProgramHandler(programs *service.ProgramService, logger *slog.Logger) *ProgramHandler {
	return &ProgramHandler{
		programs: programs,
		logger:   logger,
	}
}

// programRequest is the body for create and update. Fields the client
// omits arrive as empty strings; the service decides what empty means
// (for update, an empty name means "keep the old one").
type programRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// HandleCreate saves a new program.
//
// HTTP: POST /api/programs
func (h *ProgramHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	// Anonymous creates are allowed — userID is simply empty.
	userID, _ := auth.UserIDFromContext(r.Context())

	program, err := h.programs.Create(r.Context(), userID, req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, program)
}

// HandleGet returns one program by ID.
//
// HTTP: GET /api/programs/{id}
func (h *ProgramHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	program, err := h.programs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, program)
}

// HandleList returns the authenticated learner's programs.
//
// HTTP: GET /api/programs?limit=20&offset=0 (auth required)
func (h *ProgramHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required to list programs",
		})
		return
	}

	limit, offset := parsePagination(r)
	programs, err := h.programs.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, programs)
}

// HandleUpdate modifies an existing program.
//
// HTTP: PUT /api/programs/{id}
func (h *ProgramHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())

	program, err := h.programs.Update(r.Context(), userID, r.PathValue("id"), req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, program)
}

// HandleDelete removes a program.
//
// HTTP: DELETE /api/programs/{id}
func (h *ProgramHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.programs.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePagination reads optional limit/offset query params. Garbage values
// fall through as zero and the service clamps to its defaults.
func parsePagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
