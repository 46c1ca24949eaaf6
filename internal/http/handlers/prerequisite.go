package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/http/response"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/platform/apierr"
	"github.com/lumenlearn/curricula-backend/internal/services"
)

type PrerequisiteHandler struct {
	log     *logger.Logger
	prereqs services.PrerequisiteService
	cache   services.GraphCacheService
}

func NewPrerequisiteHandler(log *logger.Logger, prereqs services.PrerequisiteService, cache services.GraphCacheService) *PrerequisiteHandler {
	return &PrerequisiteHandler{
		log:     log.With("handler", "PrerequisiteHandler"),
		prereqs: prereqs,
		cache:   cache,
	}
}

func (h *PrerequisiteHandler) Validate(c *gin.Context) {
	var cand services.PrerequisiteCandidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ok, reason, err := h.prereqs.Validate(c.Request.Context(), cand)
	if err != nil {
		h.log.Error("Validate failed", "error", err)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "validate_failed"), err)
		return
	}
	out := gin.H{"valid": ok}
	if !ok {
		out["error"] = reason
	}
	response.RespondOK(c, out)
}

func (h *PrerequisiteHandler) Create(c *gin.Context) {
	var cand services.PrerequisiteCandidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	created, err := h.prereqs.Create(c.Request.Context(), cand)
	if err != nil {
		h.log.Error("Create prerequisite failed", "error", err)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "create_prerequisite_failed"), err)
		return
	}
	h.invalidateDraft(c, created.SubjectID)
	response.RespondOK(c, created)
}

func (h *PrerequisiteHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_prerequisite_id", err)
		return
	}
	deleted, err := h.prereqs.Delete(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Delete prerequisite failed", "error", err, "prerequisite_id", id)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "delete_prerequisite_failed"), err)
		return
	}
	if deleted == nil {
		response.RespondError(c, http.StatusNotFound, "prerequisite_not_found", nil)
		return
	}
	h.invalidateDraft(c, deleted.SubjectID)
	response.RespondOK(c, gin.H{"deleted": true, "prerequisite_id": id})
}

func (h *PrerequisiteHandler) ListForEntity(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("entity_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	incoming, outgoing, err := h.prereqs.ListForEntity(c.Request.Context(), entityID, boolQuery(c, "include_drafts"))
	if err != nil {
		h.log.Error("ListForEntity failed", "error", err, "entity_id", entityID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "list_prerequisites_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{
		"prerequisites": incoming,
		"unlocks":       outgoing,
	})
}

// invalidateDraft drops the draft cache slot after an edge mutation. Edge
// mutations only ever touch drafts, so the published slot stays warm.
func (h *PrerequisiteHandler) invalidateDraft(c *gin.Context, subjectID uuid.UUID) {
	vt := types.VersionTypeDraft
	if _, err := h.cache.Invalidate(c.Request.Context(), subjectID, &vt); err != nil {
		h.log.Warn("draft cache invalidation failed", "error", err, "subject_id", subjectID)
	}
}
