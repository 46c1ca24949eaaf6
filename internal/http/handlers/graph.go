package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/http/response"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/platform/apierr"
	"github.com/lumenlearn/curricula-backend/internal/services"
)

type GraphHandler struct {
	log   *logger.Logger
	cache services.GraphCacheService
}

func NewGraphHandler(log *logger.Logger, cache services.GraphCacheService) *GraphHandler {
	return &GraphHandler{
		log:   log.With("handler", "GraphHandler"),
		cache: cache,
	}
}

func subjectParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("subject_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_subject_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func boolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(name, "false"))
	if err != nil {
		return false
	}
	return v
}

func (h *GraphHandler) GetGraph(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	doc, err := h.cache.GetGraph(c.Request.Context(), subjectID, boolQuery(c, "include_drafts"), boolQuery(c, "force_refresh"))
	if err != nil {
		h.log.Error("GetGraph failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "load_graph_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{
		"subject_id":   doc.SubjectID,
		"version_id":   doc.VersionID,
		"version_type": doc.VersionType,
		"graph":        doc.Graph,
		"metadata":     doc.Metadata,
		"generated_at": doc.GeneratedAt,
	})
}

func (h *GraphHandler) Regenerate(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	doc, err := h.cache.Regenerate(c.Request.Context(), subjectID, boolQuery(c, "include_drafts"))
	if err != nil {
		h.log.Error("Regenerate failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "regenerate_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{
		"subject_id":   doc.SubjectID,
		"version_type": doc.VersionType,
		"metadata":     doc.Metadata,
		"generated_at": doc.GeneratedAt,
	})
}

func (h *GraphHandler) RegenerateAll(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	docs, err := h.cache.RegenerateAll(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("RegenerateAll failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "regenerate_all_failed"), err)
		return
	}
	out := gin.H{"subject_id": subjectID}
	for vt, doc := range docs {
		out[string(vt)] = gin.H{
			"metadata":     doc.Metadata,
			"generated_at": doc.GeneratedAt,
		}
	}
	response.RespondOK(c, out)
}

func (h *GraphHandler) InvalidateCache(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	var vt *types.VersionType
	if raw := c.Query("version_type"); raw != "" {
		v := types.VersionType(raw)
		vt = &v
	}
	deleted, err := h.cache.Invalidate(c.Request.Context(), subjectID, vt)
	if err != nil {
		h.log.Error("InvalidateCache failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "invalidate_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{"subject_id": subjectID, "deleted_count": deleted})
}

func (h *GraphHandler) Status(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	status, err := h.cache.Status(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("Status failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "cache_status_failed"), err)
		return
	}
	response.RespondOK(c, status)
}

func (h *GraphHandler) ListCache(c *gin.Context) {
	subjects, err := h.cache.ListCachedSubjects(c.Request.Context())
	if err != nil {
		h.log.Error("ListCache failed", "error", err)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "cache_list_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{"cached": subjects})
}
