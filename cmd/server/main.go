package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"mahber_app_echo/internal/handlers"
	appMiddleware "mahber_app_echo/internal/middleware"
	"mahber_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	var db *gorm.DB
	db, err = services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; handlers fall back to the database)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Initialize services
	midtransClient := services.NewMidtransService()
	contributionService := services.NewContributionService(db)
	paymentService := services.NewPaymentService(db, midtransClient)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authClient)
	dashboardHandler := handlers.NewDashboardHandler(db, cache)
	mahberHandler := handlers.NewMahberHandler(db, contributionService)
	contributionHandler := handlers.NewContributionHandler(db, paymentService)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService)
	userHandler := handlers.NewUserHandler(db)
	preferenceHandler := handlers.NewPreferenceHandler(db)

	// Public routes
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)

	// Public payment routes, addressed by contribution UUID
	e.GET("/p/:uuid", contributionHandler.ShowContribution)
	e.POST("/p/:uuid/pay", paymentHandler.InitiatePayment)

	// Gateway webhook
	e.POST("/webhooks/midtrans", paymentHandler.HandleGatewayNotification)

	// Protected API routes
	api := e.Group("/api/v1")
	api.Use(appMiddleware.RequireAuth(authClient))

	api.GET("/dashboard", dashboardHandler.Dashboard)

	api.POST("/users", userHandler.CreateUser)
	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/:id", userHandler.GetUser)
	api.GET("/users/:id/preference", preferenceHandler.GetPreference)
	api.PUT("/users/:id/preference", preferenceHandler.UpdatePreference)

	api.POST("/mahbers", mahberHandler.CreateMahber)
	api.GET("/mahbers/:id", mahberHandler.GetMahber)
	api.POST("/mahbers/:id/terms", mahberHandler.ChangeTerm)
	api.GET("/mahbers/:id/members", mahberHandler.ListMembers)
	api.POST("/mahbers/:id/members", mahberHandler.InviteMember)
	api.POST("/mahbers/:id/members/accept", mahberHandler.AcceptMember)

	api.GET("/mahbers/:id/contributions", contributionHandler.ListContributions)
	api.GET("/mahbers/:id/members/:userId/outstanding", contributionHandler.ListOutstanding)
	api.GET("/mahbers/:id/members/:userId/payments", paymentHandler.PaymentHistory)
	api.GET("/payments/:paymentId/coverage", paymentHandler.PaymentCoverage)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
