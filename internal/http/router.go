// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roadaid/internal/http/handlers"
	"roadaid/internal/http/middleware"
	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/request"
	"roadaid/internal/modules/sos"
)

type RouterDeps struct {
	Requests        *request.Service
	Assignments     *assignment.Service
	Alerts          *sos.Service
	Providers       handlers.ProviderDirectory
	DefaultRadiusKm float64
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	requestHandler := handlers.NewRequestHandler(deps.Requests, deps.Assignments, deps.Providers, deps.DefaultRadiusKm)
	sosHandler := handlers.NewSOSHandler(deps.Alerts)
	assignmentHandler := handlers.NewAssignmentHandler(deps.Assignments)

	br := r.Group("/breakdown-requests")
	{
		br.POST("", requestHandler.Create)
		br.GET("", requestHandler.List)
		br.POST("/emergency", sosHandler.CreateEmergency)
		br.GET("/nearby", requestHandler.Nearby)
		br.GET("/user/:userId", requestHandler.ListByUser)
		br.GET("/:id", requestHandler.Get)
		br.PUT("/:id", requestHandler.Update)
		br.POST("/:id/cancel", requestHandler.Cancel)
	}

	sa := r.Group("/service-assignments")
	{
		sa.POST("", assignmentHandler.Create)
		sa.GET("", assignmentHandler.ListAll)
		sa.GET("/request/:requestId", assignmentHandler.GetByRequest)
		sa.GET("/provider/:providerId", assignmentHandler.ListByProvider)
		sa.GET("/mechanic/:mechanicId", assignmentHandler.ListByMechanic)
		sa.GET("/status/:status", assignmentHandler.ListByStatus)
		sa.GET("/:id", assignmentHandler.Get)
		sa.PUT("/:id/status", assignmentHandler.UpdateStatus)
		sa.PUT("/:id/mechanic", assignmentHandler.ReassignMechanic)
		sa.PUT("/:id/eta", assignmentHandler.UpdateETA)
		sa.DELETE("/:id", assignmentHandler.Delete)
	}

	al := r.Group("/sos-alerts")
	{
		al.POST("", sosHandler.Create)
		al.GET("", sosHandler.ListAll)
		al.GET("/active/count", sosHandler.ActiveCount)
		al.GET("/user/:userId", sosHandler.ListByUser)
		al.GET("/:id", sosHandler.Get)
		al.PUT("/:id/status", sosHandler.UpdateStatus)
		al.PUT("/:id/authorities-notified", sosHandler.MarkAuthoritiesNotified)
		al.PUT("/:id/contacts", sosHandler.UpdateContacts)
		al.DELETE("/:id", sosHandler.Delete)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
