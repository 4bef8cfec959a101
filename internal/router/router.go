package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/outreachlab/telegram-mailer-backend/internal/handlers"
	"github.com/outreachlab/telegram-mailer-backend/internal/middleware"
	"github.com/outreachlab/telegram-mailer-backend/internal/services"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/auth"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/excel"
)

// SetupRouter configures the Gin router with the operator API
func SetupRouter(
	authService *auth.AuthService,
	campaignService *services.CampaignService,
	templateService *services.TemplateService,
	reportService *services.ReportService,
	excelService *excel.Service,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	bearerTokenMiddleware := middleware.NewBearerTokenMiddleware(authService)

	authHandler := handlers.NewAuthHandler(authService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	campaignHandler := handlers.NewCampaignHandler(campaignService, excelService)
	reportHandler := handlers.NewReportHandler(reportService)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// Auth routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(bearerTokenMiddleware.BearerTokenAuthMiddleware())
		{
			authProtected := protected.Group("/auth")
			{
				authProtected.GET("/me", authHandler.Me)
			}

			templates := protected.Group("/templates")
			{
				templates.POST("", templateHandler.CreateTemplate)
				templates.GET("", templateHandler.GetTemplates)
				templates.GET("/:id", templateHandler.GetTemplate)
				templates.PUT("/:id", templateHandler.UpdateTemplate)
				templates.DELETE("/:id", templateHandler.DeleteTemplate)
			}

			campaigns := protected.Group("/campaigns")
			{
				campaigns.POST("", campaignHandler.CreateCampaign)
				campaigns.GET("", campaignHandler.GetCampaigns)
				campaigns.GET("/:id", campaignHandler.GetCampaign)
				campaigns.POST("/:id/launch", campaignHandler.LaunchCampaign)
				campaigns.POST("/:id/resend-duplicates", campaignHandler.ResendDuplicates)
				campaigns.GET("/:id/export", campaignHandler.ExportCampaign)
			}

			reports := protected.Group("/reports")
			{
				reports.GET("/summary", reportHandler.GetSummaryReport)
				reports.POST("/summary/send", reportHandler.SendSummaryReport)

				receivers := reports.Group("/receivers")
				receivers.Use(bearerTokenMiddleware.AdminOnly())
				{
					receivers.POST("", reportHandler.CreateReceiverList)
					receivers.GET("", reportHandler.GetReceiverLists)
					receivers.GET("/:id", reportHandler.GetReceiverList)
					receivers.POST("/:id", reportHandler.AddReceivers)
					receivers.DELETE("/:id", reportHandler.DeleteReceiverList)
				}
			}
		}
	}

	return r
}
