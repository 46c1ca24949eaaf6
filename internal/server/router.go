package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lumenlearn/curricula-backend/internal/http/handlers"
	"github.com/lumenlearn/curricula-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleware
	GraphHandler        *handlers.GraphHandler
	PrerequisiteHandler *handlers.PrerequisiteHandler
	SubjectHandler      *handlers.SubjectHandler
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Graph + cache
	api.GET("/graph/cache/list", cfg.GraphHandler.ListCache)
	api.GET("/graph/:subject_id", cfg.GraphHandler.GetGraph)
	api.POST("/graph/:subject_id/regenerate", cfg.GraphHandler.Regenerate)
	api.POST("/graph/:subject_id/regenerate-all", cfg.GraphHandler.RegenerateAll)
	api.DELETE("/graph/:subject_id/cache", cfg.GraphHandler.InvalidateCache)
	api.GET("/graph/:subject_id/status", cfg.GraphHandler.Status)

	// Prerequisites
	api.POST("/prerequisites/validate", cfg.PrerequisiteHandler.Validate)
	api.POST("/prerequisites", cfg.PrerequisiteHandler.Create)
	api.DELETE("/prerequisites/:id", cfg.PrerequisiteHandler.Delete)
	api.GET("/prerequisites/entity/:entity_id", cfg.PrerequisiteHandler.ListForEntity)

	// Subjects + versions
	api.GET("/subjects/:subject_id/base-skills", cfg.SubjectHandler.BaseSkills)
	api.POST("/subjects/:subject_id/publish", cfg.SubjectHandler.Publish)
	api.POST("/subjects/:subject_id/rollback", cfg.SubjectHandler.Rollback)
	api.GET("/subjects/:subject_id/versions", cfg.SubjectHandler.ListVersions)

	return router
}
