// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"myride/internal/http/handlers"
	"myride/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger), middleware.Metrics())
	if len(deps.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	if deps.Sessions != nil {
		sh := handlers.NewSessionHandler(deps.Sessions)
		api.POST("/sessions", sh.Create)
		api.GET("/sessions/:id", sh.Get)
		api.DELETE("/sessions/:id", sh.Delete)
		api.PUT("/sessions/:id/text", sh.Text)
		api.POST("/sessions/:id/select", sh.Select)
		api.POST("/sessions/:id/dismiss", sh.Dismiss)
		api.GET("/sessions/:id/offers", sh.Offers)
		api.GET("/sessions/:id/catalog", sh.Catalog)
		api.PUT("/sessions/:id/tier", sh.SelectTier)
		api.POST("/sessions/:id/confirm", sh.Confirm)
	}

	if deps.Geocoder != nil && deps.Router != nil {
		lh := handlers.NewLocationHandler(deps.Geocoder, deps.Router, deps.SearchLimit, deps.SearchLang)
		api.GET("/locations", lh.Search)
		api.GET("/routes", lh.Route)
	}

	if deps.Dashboards != nil {
		authed := api.Group("", middleware.Auth(deps.Verifier))

		dh := handlers.NewDriverHandler(deps.Dashboards)
		authed.GET("/drivers/:id/rides", dh.Rides)
		authed.POST("/drivers/:id/dashboard", dh.Mount)
		authed.DELETE("/drivers/:id/dashboard", dh.Unmount)
		authed.POST("/drivers/:id/rides/:ride/accept", dh.Accept)
		authed.POST("/drivers/:id/rides/:ride/start", dh.Start)
		authed.POST("/drivers/:id/rides/:ride/complete", dh.Complete)
		authed.POST("/drivers/:id/rides/:ride/cancel", dh.Cancel)

		ph := handlers.NewPassengerHandler(deps.Dashboards)
		authed.GET("/riders/:id/rides", ph.Rides)
		authed.DELETE("/riders/:id/dashboard", ph.Unmount)
		authed.POST("/riders/:id/rides/:ride/cancel", ph.Cancel)
	}

	return r
}
