package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/controllers"
	"Gin_postgres_redis_equipment_loans/lifecycle"
)

// 对外开放的借用动作，mark-overdue 只由后台扫描触发
var actions = []lifecycle.Transition{
	lifecycle.Approve,
	lifecycle.Reject,
	lifecycle.Cancel,
	lifecycle.Checkout,
	lifecycle.RequestReturn,
	lifecycle.FinalizeReturn,
}

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s)
	eqCtl := controllers.NewEquipmentController(s)
	borrowCtl := controllers.NewBorrowController(s)

	// 复用的中间件
	authMW := app.AuthRequired(a.Sessions, a.Users, a.Config)
	seenMW := app.TouchLastSeen(a.Users, a.RDB, a.Config.Session.SeenTTL)
	privMW := app.PrivilegedOnly()
	adminMW := app.AdminOnly()

	r.GET("/healthz", func(c *app.Ctx) {
		c.JSON(http.StatusOK, app.H{"ok": true})
	})

	api := r.Group("/api", authMW, seenMW)
	{
		api.GET("/me", s.Me)
		api.POST("/logout", s.Logout)
	}

	Register(api, eqCtl, borrowCtl, uc, privMW, adminMW)
}

// Register mounts the equipment, loan and user routes on an already
// authenticated group.
func Register(api *gin.RouterGroup, eqCtl *controllers.EquipmentController, borrowCtl *controllers.BorrowController, uc *controllers.UserController, privMW, adminMW gin.HandlerFunc) {
	// ------------------------------
	// 设备
	// ------------------------------
	equipment := api.Group("/equipment")
	{
		equipment.GET("", eqCtl.List)
		equipment.GET("/:id", eqCtl.Get)
		equipment.GET("/:id/availability", eqCtl.Availability) // ?start=&end=
		equipment.POST("", privMW, eqCtl.Create)
		equipment.PUT("/:id/condition", privMW, eqCtl.SetCondition)
		equipment.POST("/:id/resync", privMW, eqCtl.Resync)
	}

	// ------------------------------
	// 借用（单件 + 成组）
	// ------------------------------
	borrows := api.Group("/borrows")
	{
		borrows.GET("", borrowCtl.List) // ?status=&equipmentId=&groupId=&requesterId=
		borrows.POST("", borrowCtl.Submit)
		borrows.GET("/:id", borrowCtl.Get)
		borrows.DELETE("/:id", borrowCtl.Delete)
		borrows.POST("/:id/deficiencies", borrowCtl.ReportDeficiency)
		borrows.GET("/:id/deficiencies", borrowCtl.Deficiencies)
		for _, tr := range actions {
			borrows.POST("/:id/"+string(tr), borrowCtl.Transition(tr))
		}
	}

	groups := api.Group("/groups")
	{
		for _, tr := range actions {
			groups.POST("/:groupId/"+string(tr), borrowCtl.Transition(tr))
		}
	}

	// ------------------------------
	// 用户管理（仅管理员）
	// ------------------------------
	users := api.Group("/users", adminMW)
	{
		users.GET("", uc.ListUsers) // ?q=&page=&size=
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id/role", uc.SetRole)
	}
}
