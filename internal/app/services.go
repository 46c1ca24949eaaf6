package app

import (
	"gorm.io/gorm"

	redisclient "github.com/lumenlearn/curricula-backend/internal/clients/redis"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/services"
)

type Services struct {
	Prerequisites services.PrerequisiteService
	GraphCache    services.GraphCacheService
	Versions      services.VersionService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos) (Services, error) {
	cacheStore, err := redisclient.NewGraphCacheStore(log, redisclient.Options{
		Addr:      cfg.RedisAddr,
		KeyPrefix: cfg.CacheKeyPrefix,
		TTL:       cfg.CacheTTL,
	})
	if err != nil {
		return Services{}, err
	}

	prereqs := services.NewPrerequisiteService(db, log, repos.Prerequisites, repos.Entities, repos.Versions)
	cache := services.NewGraphCacheService(log, cacheStore, prereqs, repos.Versions)
	versions := services.NewVersionService(db, log, repos.Subjects, repos.Versions, repos.Prerequisites, cache, prereqs)

	return Services{
		Prerequisites: prereqs,
		GraphCache:    cache,
		Versions:      versions,
	}, nil
}
