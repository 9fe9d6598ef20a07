package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/controllers"
	"github.com/yeremiapane/restaurant-ops/events"
	"github.com/yeremiapane/restaurant-ops/middlewares"
	"github.com/yeremiapane/restaurant-ops/services"
)

func SetupRouter(db *gorm.DB, hub *events.Hub, policy config.Policy) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Services
	stock := services.NewStockService()
	sessionSvc := services.NewSessionService(db, hub)
	orderSvc := services.NewOrderService(db, hub, stock, policy)
	kitchenSvc := services.NewKitchenService(db, policy)

	// Controllers
	userCtrl := controllers.NewUserController(db)
	tableCtrl := controllers.NewTableController(db, sessionSvc)
	sessionCtrl := controllers.NewSessionController(db, sessionSvc)
	orderCtrl := controllers.NewOrderController(db, orderSvc)
	kitchenCtrl := controllers.NewKitchenController(kitchenSvc)
	assistCtrl := controllers.NewAssistanceController(db, sessionSvc)
	streamCtrl := controllers.NewStreamController(hub)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/register", userCtrl.Register)
	r.POST("/login", userCtrl.Login)

	// -- GUEST (no auth, gated by table OTP) --
	r.GET("/tables/:table_id/scan", sessionCtrl.ScanTable)
	r.POST("/tables/:table_id/verify-otp", sessionCtrl.VerifyOTP)
	r.GET("/tables/:table_id/session", sessionCtrl.GetActiveSession)
	r.POST("/sessions/:session_id/orders", orderCtrl.PlaceOrder)
	r.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	r.POST("/sessions/:session_id/assistance", assistCtrl.RequestAssistance)

	// Payment gateway callback (outcome only; protocol lives outside)
	r.POST("/payments/callback", sessionCtrl.PaymentCallback)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/staff")
	auth.Use(middlewares.AuthMiddleware())

	// TABLES
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.POST("/tables", middlewares.RequireRoles("staff"), tableCtrl.CreateTable)
	auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
	auth.PATCH("/tables/:table_id", middlewares.RequireRoles("staff", "waiter"), tableCtrl.UpdateTableStatus)
	auth.PATCH("/tables/:table_id/clean", tableCtrl.MarkTableClean)
	auth.POST("/tables/:table_id/seat", middlewares.RequireRoles("staff", "waiter"), sessionCtrl.SeatGuests)

	// SESSIONS
	auth.POST("/sessions/:session_id/end", middlewares.RequireRoles("staff", "waiter"), sessionCtrl.EndSession)
	auth.PATCH("/sessions/:session_id/guest-count", middlewares.RequireRoles("staff", "waiter"), sessionCtrl.UpdateGuestCount)

	// ORDERS
	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.POST("/orders/:order_id/confirm", middlewares.RequireRoles("staff", "waiter"), orderCtrl.ConfirmOrder)
	auth.POST("/orders/:order_id/reject", middlewares.RequireRoles("staff", "waiter"), orderCtrl.RejectOrder)
	auth.POST("/orders/:order_id/cancel", middlewares.RequireRoles("staff", "waiter"), orderCtrl.CancelOrder)
	auth.POST("/orders/:order_id/complete", middlewares.RequireRoles("staff", "waiter"), orderCtrl.CompleteOrder)

	// Item-level preparation (stations + waiters)
	auth.POST("/order-items/:item_id/start", middlewares.RequireRoles("chef", "bartender"), orderCtrl.StartItem)
	auth.POST("/order-items/:item_id/finish", middlewares.RequireRoles("chef", "bartender"), orderCtrl.FinishItem)
	auth.POST("/order-items/:item_id/serve", middlewares.RequireRoles("staff", "waiter"), orderCtrl.ServeItem)

	// KITCHEN / BAR DISPLAYS
	auth.GET("/kitchen/display", middlewares.RequireRoles("chef", "bartender", "staff"), kitchenCtrl.GetDisplayQueue)
	auth.GET("/kitchen/summary", middlewares.RequireRoles("chef", "bartender", "staff"), kitchenCtrl.GetStationSummary)

	// ASSISTANCE
	auth.GET("/assistance", middlewares.RequireRoles("staff", "waiter"), assistCtrl.ListOpenRequests)
	auth.PATCH("/assistance/:request_id", middlewares.RequireRoles("staff", "waiter"), assistCtrl.UpdateAssistance)

	// Streaming subscribe endpoint, keyed by restaurant+role from the token
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/subscribe", streamCtrl.Subscribe)
	}

	return r
}
