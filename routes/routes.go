package routes

import (
	"net/http"

	"stationmatrix-backend/config"
	"stationmatrix-backend/controllers"
	"stationmatrix-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the pieces the router hands requests to.
type Deps struct {
	Config  config.App
	Auth    *controllers.AuthController
	Matrix  *controllers.MatrixController
	Tokens  *utils.TokenIssuer
	Limiter *utils.RateLimiter
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.Default()

	origins := map[string]bool{}
	for _, o := range d.Config.AllowedOrigins {
		origins[o] = true
	}
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return origins[origin]
		},
	}))

	r.Use(config.PerformanceLogger(d.Config.SlowRequestThreshold))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	{
		auth.POST("/register", d.Limiter.Limit(), d.Auth.Register)
		auth.POST("/login", d.Limiter.Limit(), d.Auth.Login)
		auth.GET("/me", d.Tokens.AuthMiddleware(), d.Auth.Me)
	}

	api := r.Group("/api")
	api.Use(d.Tokens.AuthMiddleware(), d.Limiter.Limit())
	{
		// Service routes
		services := api.Group("/services")
		{
			services.GET("", d.Matrix.GetServices)
			services.POST("", d.Matrix.CreateService)
			services.GET("/:id", d.Matrix.GetService)
			services.PUT("/:id", d.Matrix.UpdateService)
			services.DELETE("/:id", d.Matrix.DeleteService)
			services.POST("/:id/duplicate", d.Matrix.DuplicateService)
		}

		// Station routes
		stations := api.Group("/stations")
		{
			stations.GET("", d.Matrix.GetStations)
			stations.POST("", d.Matrix.CreateStation)
			stations.PUT("/order", d.Matrix.ReorderStations)
			stations.PUT("/:id", d.Matrix.UpdateStation)
			stations.POST("/:id/duplicate", d.Matrix.DuplicateStation)
			stations.GET("/:id/working-hours", d.Matrix.GetWorkingHours)
			stations.PUT("/:id/working-hours", d.Matrix.UpdateWorkingHours)
			stations.POST("/:id/delete/:step", d.Matrix.StationDeletion)
		}

		// Matrix routes
		api.GET("/matrix", d.Matrix.GetMatrix)
		m := api.Group("/matrix")
		{
			m.POST("/session", d.Matrix.Mount)
			m.DELETE("/session", d.Matrix.Unmount)
			m.POST("/reload", d.Matrix.Reload)
			m.PUT("/cells/:serviceId/:stationId", d.Matrix.UpdateCell)
			m.PUT("/rows/:serviceId/default-time", d.Matrix.SetDefaultTime)
			m.POST("/rows/:serviceId/:action", d.Matrix.RowAction)
			m.POST("/save", d.Matrix.SaveAll)
			m.POST("/revert", d.Matrix.RevertAll)
			m.PUT("/filter", d.Matrix.SetFilter)
			m.PUT("/selection", d.Matrix.SetSelection)
			m.PUT("/page", d.Matrix.SetPage)
		}
	}

	return r
}
