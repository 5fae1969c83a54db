package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paas-deployer/internal/handler"
	"paas-deployer/internal/pkg/metrics"
)

func RegisterRoutes(r *gin.Engine, deployHandler *handler.DeployHandler, sshHandler *handler.SSHHandler, m *metrics.Metrics, gatherer prometheus.Gatherer) {
	r.Use(requestMetrics(m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		deploy := api.Group("/deploy")
		{
			deploy.POST("", deployHandler.Deploy)
			deploy.GET("/:taskId", deployHandler.Progress)
			deploy.GET("/:taskId/logs", deployHandler.Logs)
		}

		api.POST("/artifacts/resolve", deployHandler.Resolve)

		if sshHandler != nil {
			ssh := api.Group("/ssh")
			{
				ssh.POST("/test", sshHandler.TestConnection)
				ssh.POST("/test-batch", sshHandler.BatchTestConnection)
			}
		}
	}
}

func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
