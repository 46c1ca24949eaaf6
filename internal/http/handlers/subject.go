package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lumenlearn/curricula-backend/internal/http/response"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/platform/apierr"
	"github.com/lumenlearn/curricula-backend/internal/services"
)

type SubjectHandler struct {
	log      *logger.Logger
	prereqs  services.PrerequisiteService
	versions services.VersionService
}

func NewSubjectHandler(log *logger.Logger, prereqs services.PrerequisiteService, versions services.VersionService) *SubjectHandler {
	return &SubjectHandler{
		log:      log.With("handler", "SubjectHandler"),
		prereqs:  prereqs,
		versions: versions,
	}
}

func (h *SubjectHandler) BaseSkills(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	skills, err := h.prereqs.BaseSkills(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("BaseSkills failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "base_skills_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{"subject_id": subjectID, "base_skills": skills})
}

func (h *SubjectHandler) Publish(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	version, err := h.versions.Publish(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("Publish failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "publish_failed"), err)
		return
	}
	response.RespondOK(c, version)
}

func (h *SubjectHandler) Rollback(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	version, err := h.versions.Rollback(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("Rollback failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "rollback_failed"), err)
		return
	}
	response.RespondOK(c, version)
}

func (h *SubjectHandler) ListVersions(c *gin.Context) {
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}
	versions, err := h.versions.List(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error("ListVersions failed", "error", err, "subject_id", subjectID)
		response.RespondError(c, apierr.Status(err), apierr.Code(err, "list_versions_failed"), err)
		return
	}
	response.RespondOK(c, gin.H{"subject_id": subjectID, "versions": versions})
}
