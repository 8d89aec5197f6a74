// Package status serves a read-only view of a running engine over HTTP.
package status

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gridforge/internal/evo"
	"gridforge/internal/telemetry"
)

const defaultTop = 3

// Source is the engine view the router reads from.
type Source interface {
	Status(topFamilies, topMembers int) evo.Status
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the status routes: GET /status, GET /healthz and
// GET /metrics.
func NewRouter(src Source, metrics *telemetry.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", statusHandler(src))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

func statusHandler(src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		topFamilies, err := topParam(c, "topFamilies")
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		topMembers, err := topParam(c, "topMembers")
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.JSON(http.StatusOK, src.Status(topFamilies, topMembers))
	}
}

func topParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultTop, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &paramError{name: name, value: raw}
	}
	return n, nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return e.name + " must be a non-negative integer, got " + strconv.Quote(e.value)
}
