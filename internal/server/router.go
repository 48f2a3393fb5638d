package server

import (
	"net/http"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/config"
	"engagement-crm/internal/handlers"
	"engagement-crm/internal/middleware"
	"engagement-crm/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, clients *collab.Clients) *gin.Engine {
	r := gin.Default()

	handlers.Init(clients)

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("crm_session", store))

	r.Use(middleware.InjectUser())

	api := r.Group("/api")

	// AUTH
	api.POST("/auth/register", handlers.Register)
	api.POST("/auth/login", handlers.Login)
	api.POST("/auth/logout", handlers.Logout)

	// КЛИЕНТСКИЕ ПОРТАЛЫ — доступ по токену, без сессии
	api.GET("/upload/:token/status", handlers.UploadStatus)
	api.POST("/upload/:token", handlers.UploadFile)
	api.POST("/upload/:token/complete", handlers.CompleteUpload)
	api.GET("/deliverables/portal/:token", handlers.DeliverablePortal)

	// ВЕБХУКИ внешних сервисов
	api.POST("/webhooks/esign", handlers.ESignWebhook)
	api.POST("/webhooks/payments", handlers.PaymentWebhook)

	auth := api.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/auth/me", handlers.Me)

	// ВОРОНКА
	auth.GET("/pipeline/companies", handlers.ListCompanies)
	auth.POST("/pipeline/companies",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.CreateCompany,
	)
	auth.PUT("/pipeline/companies/:id",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.UpdateCompany,
	)
	auth.POST("/pipeline/companies/:id/contacts",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.CreateContact,
	)
	auth.GET("/pipeline/opportunities", handlers.ListOpportunities)
	auth.GET("/pipeline/opportunities/:id", handlers.GetOpportunity)
	auth.POST("/pipeline/opportunities",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.CreateOpportunity,
	)
	auth.PUT("/pipeline/opportunities/:id/stage",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.SetOpportunityStage,
	)
	auth.POST("/pipeline/opportunities/:id/convert",
		middleware.RequireRole(models.RoleAdmin, models.RolePartner),
		handlers.ConvertOpportunity,
	)

	// КЛИЕНТЫ И ПРОЕКТЫ
	auth.GET("/clients", handlers.ListClients)
	auth.GET("/engagements", handlers.ListEngagements)
	auth.GET("/engagements/:id", handlers.GetEngagement)
	auth.GET("/engagements/:id/activity", handlers.ListActivity)

	partner := auth.Group("/")
	partner.Use(middleware.RequireRole(models.RoleAdmin, models.RolePartner))

	partner.POST("/engagements/:id/start", handlers.StartEngagement)
	partner.POST("/engagements/:id/begin-phases", handlers.BeginPhases)
	partner.POST("/engagements/:id/advance-phase", handlers.AdvancePhase)
	partner.POST("/engagements/:id/debrief-complete", handlers.MarkDebriefComplete)
	partner.POST("/engagements/:id/archive", handlers.ArchiveEngagement)

	// РЕЗУЛЬТАТЫ ФАЗ
	partner.POST("/engagements/:id/seed-outputs", handlers.SeedPhaseOutputs)
	auth.GET("/engagements/:id/phase-outputs", handlers.ListPhaseOutputs)
	auth.GET("/engagements/:id/phase-outputs/:phase", handlers.ListPhaseOutputs)
	partner.POST("/phase-outputs/:id/upload", handlers.UploadPhaseOutput)
	partner.PUT("/phase-outputs/:id/accept", handlers.AcceptPhaseOutput)
	partner.PUT("/engagements/:id/phase-outputs/:phase/accept-all", handlers.AcceptAllPhaseOutputs)

	// МАТЕРИАЛЫ ДЛЯ КЛИЕНТА
	partner.POST("/engagements/:id/deliverables/ensure", handlers.EnsureDeliverables)
	partner.POST("/engagements/:id/deliverables/:deliverable_id/upload", handlers.UploadDeliverable)
	partner.PUT("/deliverables/:id/approve", handlers.ApproveDeliverable)
	partner.POST("/engagements/:id/release-wave1", handlers.ReleaseWave1)
	partner.POST("/engagements/:id/release-wave2", handlers.ReleaseWave2)

	// СЧЕТА
	auth.GET("/invoices", handlers.ListInvoices)
	auth.GET("/invoices/revenue-summary", handlers.RevenueSummary)
	auth.GET("/invoices/check-overdue", handlers.CheckOverdueInvoices)
	auth.GET("/invoices/:id", handlers.GetInvoice)
	auth.GET("/engagements/:id/invoices", handlers.ListEngagementInvoices)
	partner.POST("/engagements/:id/generate-invoice", handlers.GenerateInvoice)
	partner.POST("/invoices/:id/resend", handlers.ResendInvoice)
	partner.POST("/invoices/:id/void", handlers.VoidInvoice)
	partner.POST("/invoices/:id/mark-paid", handlers.MarkInvoicePaid)

	// ФОЛЛОУ-АПЫ
	auth.GET("/follow-ups", handlers.ListDueFollowUps)
	auth.GET("/follow-ups/:id", handlers.GetFollowUp)
	auth.GET("/engagements/:id/follow-ups", handlers.ListEngagementFollowUps)
	partner.PATCH("/follow-ups/:id", handlers.UpdateFollowUp)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
