package handlers

import (
	"net/http"

	"metronix/internal/api"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
)

// SolverHandler serves the solver work queues and actions
type SolverHandler struct {
	complaintService services.ComplaintServiceInterface
	logger           *observability.Logger
}

// NewSolverHandler creates a new SolverHandler instance
func NewSolverHandler(complaintService services.ComplaintServiceInterface, logger *observability.Logger) *SolverHandler {
	return &SolverHandler{complaintService: complaintService, logger: logger}
}

// GetQueues returns the available and assigned queues of the caller
func (h *SolverHandler) GetQueues(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_solver_queues")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	queues, err := h.complaintService.SolverQueues(ctx, actor.UserID)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to load solver queues", err, map[string]interface{}{"user_id": actor.UserID})
		return
	}

	c.JSON(http.StatusOK, queues)
}

// PerformAction runs assign, start, resolve or add_note on a complaint
func (h *SolverHandler) PerformAction(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "solver_action")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	complaintID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req api.SolverActionRequest
	if !bindJSON(c, &req) {
		return
	}
	note := ""
	if req.Note != nil {
		note = *req.Note
	}
	span.SetAttributes(
		observability.AttributeComplaintID(complaintID),
		observability.AttributeAction(string(req.Action)),
	)

	fields := map[string]interface{}{"complaint_id": complaintID, "action": string(req.Action), "user_id": actor.UserID}

	switch req.Action {
	case api.SolverActionAssign:
		complaint, err := h.complaintService.Assign(ctx, complaintID, actor.UserID)
		if err != nil {
			respondError(ctx, c, h.logger, "Solver action failed", err, fields)
			return
		}
		c.JSON(http.StatusOK, complaint)
	case api.SolverActionStart:
		complaint, err := h.complaintService.Start(ctx, complaintID, actor.UserID)
		if err != nil {
			respondError(ctx, c, h.logger, "Solver action failed", err, fields)
			return
		}
		c.JSON(http.StatusOK, complaint)
	case api.SolverActionResolve:
		complaint, err := h.complaintService.Resolve(ctx, complaintID, actor.UserID, note)
		if err != nil {
			respondError(ctx, c, h.logger, "Solver action failed", err, fields)
			return
		}
		c.JSON(http.StatusOK, complaint)
	case api.SolverActionAddNote:
		entry, err := h.complaintService.AddNote(ctx, complaintID, actor, note)
		if err != nil {
			respondError(ctx, c, h.logger, "Solver action failed", err, fields)
			return
		}
		c.JSON(http.StatusCreated, entry)
	default:
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown action %q", req.Action))
	}
}
