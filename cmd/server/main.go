package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/controller"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/db"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/internal/router"
	"github.com/aabhushan/aabhushan-backend/internal/scheduler"
	"github.com/aabhushan/aabhushan-backend/internal/storage"
	"github.com/aabhushan/aabhushan-backend/internal/websocket"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/aabhushan/aabhushan-backend/pkg/payment/phonepe"
	"github.com/aabhushan/aabhushan-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting AABHUSHAN Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed the admin account (optional)
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Initialize Redis (OTPs, token blacklist, guest carts)
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Fatal("Failed to initialize Redis", err)
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())
	addressRepo := repository.NewAddressRepository(db.GetDB())
	reviewRepo := repository.NewReviewRepository(db.GetDB())
	guestCartStore := repository.NewRedisGuestCartStore(redis.GetClient())

	// Order feed hub for admin dashboards
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize services
	authService := service.NewAuthService(userRepo, service.NewRedisOTPStore(), cfg)
	categoryService := service.NewCategoryService(categoryRepo)
	productService := service.NewProductService(productRepo, categoryRepo)
	cartService := service.NewCartService(cartRepo, productRepo, guestCartStore)
	orderService := service.NewOrderService(db.GetDB(), orderRepo, addressRepo, cartService, hub)
	paymentService := service.NewPaymentService(phonepe.NewClient(&cfg.Payment.PhonePe), orderService)
	addressService := service.NewAddressService(addressRepo)
	reviewService := service.NewReviewService(reviewRepo, productRepo)

	s3Storage := storage.NewS3Storage(&cfg.S3)

	// Initialize controllers
	authController := controller.NewAuthController(authService, cartService)
	productController := controller.NewProductController(productService, reviewService, s3Storage)
	categoryController := controller.NewCategoryController(categoryService)
	cartController := controller.NewCartController(cartService)
	orderController := controller.NewOrderController(orderService)
	paymentController := controller.NewPaymentController(paymentService)
	addressController := controller.NewAddressController(addressService)
	reviewController := controller.NewReviewController(reviewService, s3Storage)
	uploadController := controller.NewUploadController(s3Storage)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, true)

	// Sweep orders whose payment never arrived
	expiryScheduler := scheduler.NewOrderExpiryScheduler(orderService)
	if err := expiryScheduler.Start(); err != nil {
		logger.Fatal("Failed to start order expiry scheduler", err)
	}
	defer expiryScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		authController,
		productController,
		categoryController,
		cartController,
		orderController,
		paymentController,
		addressController,
		reviewController,
		uploadController,
		authMiddleware,
		hub,
		cfg,
	)
	engine := r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", err)
	}

	logger.Info("Server stopped successfully")
}
