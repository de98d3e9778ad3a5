// Package api exposes the diagnostics HTTP surface of the headless viewer
// daemon: health plus registry and pool statistics. It never serves
// document content.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/viewer"
)

// NewRouter creates a configured Gin engine with all routes.
//
// Middleware chain: Recovery → Logger. The surface is local diagnostics
// only, so there is no auth tier.
func NewRouter(reg *viewer.Registry, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", health(reg, startTime))
	v1.GET("/stats", stats(reg))
	v1.GET("/instances", instances(reg))
	v1.GET("/instances/:id", instanceByID(reg))

	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Instances int    `json:"instances"`
	Version   string `json:"version"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// health reports a degraded status when any instance's canvas pool runs
// close to full.
func health(reg *viewer.Registry, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := reg.Stats()

		status := "healthy"
		for _, inst := range s.PerViewer {
			if inst.Canvases.Total > 0 && inst.Canvases.InUse > inst.Canvases.Total*8/10 {
				status = "degraded"
				break
			}
		}

		c.JSON(http.StatusOK, healthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Instances: s.Instances,
			Version:   "0.1.0",
		})
	}
}

func stats(reg *viewer.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Stats())
	}
}

func instances(reg *viewer.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		handles := reg.All()
		out := make([]viewer.InstanceStats, 0, len(handles))
		for _, h := range handles {
			out = append(out, h.Stats())
		}
		c.JSON(http.StatusOK, out)
	}
}

func instanceByID(reg *viewer.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := reg.GetByInstance(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, errorResponse{
				Code:    models.CodeOf(err),
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, h.Stats())
	}
}
