package approuters

import (
	"github.com/Tisha7353/Resono/internal/configuration"
	"github.com/Tisha7353/Resono/internal/handler"
	"github.com/Tisha7353/Resono/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes. The stats payload carries
// per-user presence, so the group sits behind the same bearer auth as the
// chat routes.
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorService := hub.NewMonitorService(container.Hub)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	monitorGroup := router.Group("/api/monitor", handler.AuthRequired(container.TokenService))
	{
		monitorGroup.GET("/stats", monitorHandler.GetHubStats)
	}
}
