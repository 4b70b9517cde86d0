package router

import (
	"github.com/gin-gonic/gin"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/controller"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/internal/websocket"
)

type Router struct {
	authController     *controller.AuthController
	productController  *controller.ProductController
	categoryController *controller.CategoryController
	cartController     *controller.CartController
	orderController    *controller.OrderController
	paymentController  *controller.PaymentController
	addressController  *controller.AddressController
	reviewController   *controller.ReviewController
	uploadController   *controller.UploadController
	authMiddleware     *middleware.AuthMiddleware
	hub                *websocket.Hub
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	categoryController *controller.CategoryController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	addressController *controller.AddressController,
	reviewController *controller.ReviewController,
	uploadController *controller.UploadController,
	authMiddleware *middleware.AuthMiddleware,
	hub *websocket.Hub,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		productController:  productController,
		categoryController: categoryController,
		cartController:     cartController,
		orderController:    orderController,
		paymentController:  paymentController,
		addressController:  addressController,
		reviewController:   reviewController,
		uploadController:   uploadController,
		authMiddleware:     authMiddleware,
		hub:                hub,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "AABHUSHAN API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/otp/request", r.authController.RequestOTP)
			auth.POST("/otp/verify", r.authController.VerifyOTP)
			auth.POST("/admin/login", r.authController.AdminLogin)
			auth.POST("/refresh", r.authController.Refresh)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/popular", r.productController.PopularProducts)
			products.GET("/:id", r.productController.GetProduct)
			products.GET("/:id/reviews", r.reviewController.ListProductReviews)
			products.POST("/:id/reviews",
				r.authMiddleware.Authenticate(),
				r.reviewController.CreateReview,
			)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", r.categoryController.ListCategories)
			categories.GET("/:id", r.categoryController.GetCategory)
			categories.GET("/:id/sub-categories", r.categoryController.ListSubCategories)
		}

		// Cart routes serve both guests and signed-in users; the identity
		// decides which cart representation backs the call.
		cart := v1.Group("/cart")
		cart.Use(r.authMiddleware.OptionalAuthenticate())
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("/increase", r.cartController.IncreaseQuantity)
			cart.POST("/decrease", r.cartController.DecreaseQuantity)
			cart.DELETE("/items/:productId", r.cartController.RemoveItem)
		}

		cartAuth := v1.Group("/cart")
		cartAuth.Use(r.authMiddleware.Authenticate())
		{
			cartAuth.POST("/merge", r.cartController.MergeGuestCart)
			cartAuth.POST("/validate", r.cartController.ValidateCheckout)
		}

		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware.Authenticate())
		{
			orders.GET("", r.orderController.ListMyOrders)
			orders.GET("/:id", r.orderController.GetOrder)
			orders.POST("/:id/cancel", r.orderController.CancelOrder)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/phonepe/callback", r.paymentController.Callback)

			payments.POST("/checkout",
				r.authMiddleware.Authenticate(),
				r.paymentController.Checkout,
			)
			payments.POST("/orders/:id/confirm",
				r.authMiddleware.Authenticate(),
				r.paymentController.ConfirmPayment,
			)
			payments.POST("/orders/:id/cancel",
				r.authMiddleware.Authenticate(),
				r.paymentController.CancelPayment,
			)
		}

		addresses := v1.Group("/addresses")
		addresses.Use(r.authMiddleware.Authenticate())
		{
			addresses.GET("", r.addressController.ListAddresses)
			addresses.POST("", r.addressController.CreateAddress)
			addresses.PUT("/:id", r.addressController.UpdateAddress)
			addresses.DELETE("/:id", r.addressController.DeleteAddress)
			addresses.POST("/:id/default", r.addressController.SetDefaultAddress)
		}

		reviews := v1.Group("/reviews")
		reviews.Use(r.authMiddleware.Authenticate())
		{
			reviews.PUT("/:id", r.reviewController.UpdateReview)
			reviews.DELETE("/:id", r.reviewController.DeleteReview)
		}

		// Customers presign review images, admins everything else; the
		// folder whitelist bounds what either can write.
		uploads := v1.Group("/uploads")
		uploads.Use(r.authMiddleware.Authenticate())
		{
			uploads.POST("/presign", r.uploadController.PresignUpload)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole("admin"))
		{
			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeleteProduct)
			admin.POST("/products/:id/images", r.productController.AddProductImage)
			admin.DELETE("/products/images/:imageId", r.productController.DeleteProductImage)

			admin.POST("/categories", r.categoryController.CreateCategory)
			admin.PUT("/categories/:id", r.categoryController.UpdateCategory)
			admin.DELETE("/categories/:id", r.categoryController.DeleteCategory)
			admin.POST("/categories/:id/sub-categories", r.categoryController.CreateSubCategory)
			admin.DELETE("/sub-categories/:id", r.categoryController.DeleteSubCategory)

			admin.GET("/orders", r.orderController.ListOrders)
			admin.GET("/orders/export", r.orderController.ExportOrders)
			admin.GET("/orders/feed", websocket.ServeOrderFeed(r.hub))
			admin.GET("/orders/:id", r.orderController.GetOrderAdmin)
			admin.PATCH("/orders/:id/status", r.orderController.UpdateOrderStatus)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Guest-Cart-Token, X-VERIFY")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Guest-Cart-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
