package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// TaskHandler serves the /api/calendar-tasks routes.
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if tasks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task service cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// List handles GET /api/calendar-tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context(), tenantParam(r), r.URL.Query().Get("date"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch calendar tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// Range handles GET /api/calendar-tasks/range.
func (h *TaskHandler) Range(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("startDate")
	to := r.URL.Query().Get("endDate")
	if from == "" || to == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "startDate and endDate are required")
		return
	}

	tasks, err := h.tasks.Range(r.Context(), tenantParam(r), from, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch calendar tasks for date range")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// Upcoming handles GET /api/calendar-tasks/upcoming.
func (h *TaskHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.Upcoming(r.Context(), tenantParam(r), service.DefaultUpcomingWindow)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch upcoming tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// Create handles POST /api/calendar-tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Date == "" || req.Time == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "title, date, and time are required")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	task, err := h.tasks.Create(r.Context(), service.TaskInput{
		TenantID:    req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		Date:        req.Date,
		Time:        req.Time,
		EndTime:     req.EndTime,
		Priority:    domain.Priority(req.Priority),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create calendar task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// Update handles PUT /api/calendar-tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	upd := service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		EndTime:     req.EndTime,
		Completed:   req.Completed,
	}
	if req.Category != nil {
		category := domain.Category(*req.Category)
		upd.Category = &category
	}
	if req.Priority != nil {
		priority := domain.Priority(*req.Priority)
		upd.Priority = &priority
	}

	task, err := h.tasks.Update(r.Context(), id, upd)
	if isTaskNotFound(err) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Calendar task not found")
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update calendar task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Delete handles DELETE /api/calendar-tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	err = h.tasks.Delete(r.Context(), id)
	if isTaskNotFound(err) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Calendar task not found")
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete calendar task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func isTaskNotFound(err error) bool {
	return errors.Is(err, service.ErrTaskNotFound) || errors.Is(err, store.ErrTaskNotFound)
}
