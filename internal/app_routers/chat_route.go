package approuters

import (
	"github.com/Tisha7353/Resono/internal/configuration"
	"github.com/Tisha7353/Resono/internal/handler"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/api", handler.AuthRequired(container.TokenService))
	{
		chatRoute.GET("/users", container.ChatHandler.GetUsers)
		chatRoute.GET("/messages/:userId", container.ChatHandler.GetMessages)
	}
}
