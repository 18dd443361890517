package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/middleware"
)

type RouterDeps struct {
	Auth             *AuthHandler
	Corpus           *CorpusHandler
	Files            *FileHandler
	Retrieval        *RetrievalHandler
	JWTSecret        []byte
	RateLimitSeconds int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/corpus/emails", deps.Corpus.CreateEmail)
	authGroup.POST("/corpus/schedules", deps.Corpus.CreateSchedule)
	authGroup.POST("/corpus/attachments", deps.Corpus.CreateAttachment)
	authGroup.POST("/corpus/files", deps.Files.Upload)
	authGroup.GET("/corpus/:type/:id", deps.Corpus.Get)
	authGroup.GET("/corpus/:type/:id/blob", deps.Files.Download)

	retrievalGroup := authGroup.Group("")
	if deps.RateLimitSeconds > 0 {
		retrievalGroup.Use(middleware.RateLimit(time.Duration(deps.RateLimitSeconds) * time.Second))
	}
	retrievalGroup.POST("/retrieval/query", deps.Retrieval.Query)
	retrievalGroup.GET("/retrieval/search", deps.Retrieval.Search)
}
