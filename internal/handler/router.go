package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// RouterDeps groups everything the API routes need.
type RouterDeps struct {
	APIPrefix    string
	MetricsPath  string
	Tokens       middleware.TokenValidator
	Substitution *SubstitutionHandler
	Metrics      *MetricsHandler
	Logger       *zap.Logger
}

// RegisterRoutes mounts the health, metrics and versioned API routes on r.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	if deps.Metrics != nil {
		r.GET("/health", deps.Metrics.Health)
		r.GET("/ready", deps.Metrics.Ready)
		if deps.MetricsPath != "" {
			r.GET(deps.MetricsPath, deps.Metrics.Prometheus)
		}
	}

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta(), middleware.JWT(deps.Tokens))

	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	teacherOrAdmin := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin)
	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(deps.Logger, action, "substitution_offer")
	}

	h := deps.Substitution
	subs := api.Group("/substitutions")
	{
		subs.GET("/recommendations", admin, h.Recommendations)
		subs.GET("/roster", admin, h.Roster)

		subs.POST("/offers", admin, audit("offers.create"), h.CreateOffers)
		subs.GET("/offers", admin, h.ListOffers)
		subs.GET("/offers/mine", middleware.RequireRoles(models.RoleTeacher), h.MyOffers)
		subs.GET("/offers/:id", teacherOrAdmin, h.GetOffer)
		subs.POST("/offers/:id/respond", middleware.RequireRoles(models.RoleTeacher), audit("offers.respond"), h.Respond)
		subs.POST("/offers/:id/complete", admin, audit("offers.complete"), h.Complete)
		subs.DELETE("/offers/:id", admin, audit("offers.cancel"), h.Cancel)
	}

	api.GET("/leaves/:id/offers", admin, h.LeaveOffers)
	api.GET("/teachers/:id/substitution-offers",
		middleware.RequireRolesOrSelf(models.RoleAdmin, models.RoleSuperAdmin), h.TeacherOffers)

	if deps.Metrics != nil {
		api.GET("/system/metrics", admin, deps.Metrics.System)
	}
}
