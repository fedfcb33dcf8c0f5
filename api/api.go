package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dealseal/dealseal"
	"github.com/dealseal/dealseal/api/middleware"
	"github.com/dealseal/dealseal/config"
)

type Api struct {
	dealseal *dealseal.Dealseal
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/deals", a.OpenDeal)
	router.GET("/deals/:id", a.GetDeal)
	router.POST("/deals/:id/confirm", a.ConfirmDeal)
	router.POST("/deals/:id/deny", a.DenyDeal)
	router.POST("/deals/:id/dispute", a.DisputeDeal)
	router.POST("/deals/:id/cancel", a.CancelDeal)

	router.GET("/users/:user_id/deals", a.GetDealsForUser)

	router.POST("/conversations", a.CreateConversation)
	return a.router
}

func NewAPI(d *dealseal.Dealseal) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{dealseal: d, router: r}
}
