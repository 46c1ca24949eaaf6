package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumenlearn/curricula-backend/internal/data/db"
	"github.com/lumenlearn/curricula-backend/internal/http/handlers"
	"github.com/lumenlearn/curricula-backend/internal/http/middleware"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/server"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
}

func New() (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	repos := wireRepos(theDB, log)

	svcs, err := wireServices(theDB, log, cfg, repos)
	if err != nil {
		log.Sync()
		return nil, err
	}

	authMW := middleware.NewAuthMiddleware(log, nil)
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMW,
		GraphHandler:        handlers.NewGraphHandler(log, svcs.GraphCache),
		PrerequisiteHandler: handlers.NewPrerequisiteHandler(log, svcs.Prerequisites, svcs.GraphCache),
		SubjectHandler:      handlers.NewSubjectHandler(log, svcs.Prerequisites, svcs.Versions),
		AllowOrigins:        cfg.AllowOrigins,
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    repos,
		Services: svcs,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("server listening", "port", a.Cfg.Port)
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
