// Package control exposes the engine switch over HTTP.
package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thipowin/ThipoSelf/internal/engine"
	"github.com/thipowin/ThipoSelf/pkg/logging"
	"github.com/thipowin/ThipoSelf/pkg/middleware"
)

// Counter reports the size of a configuration list.
type Counter interface {
	Len() int
}

// Dependencies holds what the handlers read and toggle.
type Dependencies struct {
	Engine   *engine.State
	Channels Counter
	Words    Counter
	Logger   logging.Logger
	Token    string // bearer token; empty disables auth
}

// Status is the GET /engine response body.
type Status struct {
	Active    bool      `json:"active"`
	ChangedAt time.Time `json:"changed_at"`
	Channels  int       `json:"channels"`
	Words     int       `json:"words"`
}

// Register mounts the engine routes on router.
func Register(router gin.IRouter, deps Dependencies) {
	group := router.Group("/engine")
	if deps.Token != "" {
		group.Use(middleware.ServiceAuthMiddleware(deps.Token))
	}
	group.GET("", status(deps))
	group.POST("/on", toggle(deps, true))
	group.POST("/off", toggle(deps, false))
}

func snapshot(deps Dependencies) Status {
	return Status{
		Active:    deps.Engine.Active(),
		ChangedAt: deps.Engine.ChangedAt(),
		Channels:  deps.Channels.Len(),
		Words:     deps.Words.Len(),
	}
}

func status(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshot(deps))
	}
}

func toggle(deps Dependencies, on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var changed bool
		if on {
			changed = deps.Engine.Activate()
		} else {
			changed = deps.Engine.Deactivate()
		}
		if changed {
			deps.Logger.WithFields(logging.Fields{
				"active":     on,
				"request_id": middleware.GetRequestID(c),
			}).Info("Engine switched over HTTP")
		}
		c.JSON(http.StatusOK, snapshot(deps))
	}
}
