package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (app *application) routes() http.Handler {
	if !app.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// simple logger middleware that uses zap
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		app.Logger.Sugar().Infow("http", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "duration", time.Since(start))
	})

	r.Use(app.CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if err := app.DB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(app.AccessTokenMiddleware())
	{
		// entry lifecycle
		v1.POST("/entries", app.Handler.CreateEntry)
		v1.GET("/entries", app.Handler.ListEntries)
		v1.GET("/entries/:id", app.Handler.GetEntry)
		v1.PATCH("/entries/:id", app.Handler.UpdateEntry)
		v1.DELETE("/entries/:id", app.Handler.DeleteEntry)
		v1.GET("/search", app.Handler.SearchEntries)

		// pipeline stages
		v1.POST("/entries/ingest", app.Handler.IngestAudio)
		v1.POST("/entries/:id/audio/chunks", app.Handler.IngestChunk)
		v1.POST("/entries/:id/transcribe", app.Handler.TranscribeEntry)
		v1.POST("/entries/:id/retranscribe", app.Handler.RetranscribeEntry)
		v1.POST("/entries/:id/analyze", app.Handler.AnalyzeEntry)

		// tags and links
		v1.GET("/tags", app.Handler.ListTags)
		v1.POST("/entries/:id/tags", app.Handler.AddTagToEntry)
		v1.DELETE("/entries/:id/tags/:tag", app.Handler.RemoveTagFromEntry)
		v1.GET("/entries/:id/links", app.Handler.LinkedEntries)
		v1.POST("/entries/:id/links", app.Handler.LinkEntries)
		v1.DELETE("/entries/:id/links/:target", app.Handler.UnlinkEntries)

		// derived prompts and settings
		v1.GET("/prompts", app.Handler.ReflectionPrompts)
		v1.GET("/settings/:key", app.Handler.GetSetting)
		v1.PUT("/settings/:key", app.Handler.SetSetting)
	}

	return r
}
