// Package inspect serves the persisted telemetry document over HTTP for
// mid-run live inspection. The endpoints are read-only views of the document
// file; they compute nothing and hold no state of their own, so they are safe
// to run alongside an active collection loop.
package inspect

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/store"
)

// NewRouter builds the inspection HTTP routes over the given store.
func NewRouter(st *store.Store, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "data_file": st.Path()})
	})

	r.GET("/telemetry", func(c *gin.Context) {
		doc, err := st.Load()
		if err != nil {
			respondLoadError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	r.GET("/telemetry/latest", func(c *gin.Context) {
		doc, err := st.Load()
		if err != nil {
			respondLoadError(c, logger, err)
			return
		}
		if len(doc.Samples) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no samples collected yet"})
			return
		}
		c.JSON(http.StatusOK, doc.Samples[len(doc.Samples)-1])
	})

	r.GET("/telemetry/steps", func(c *gin.Context) {
		doc, err := st.Load()
		if err != nil {
			respondLoadError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, doc.Steps)
	})

	return r
}

func respondLoadError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNoDocument):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("Failed to load telemetry document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
