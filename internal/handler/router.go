package handler

import (
	"net/http"

	"cashback-advisor/internal/metrics"
	"cashback-advisor/internal/middleware"

	"github.com/gin-gonic/gin"
)

type TokenIssuer interface {
	GenerateToken(userID int64) (string, error)
	ParseToken(tokenStr string) (int64, error)
}

type RouterDeps struct {
	Store   CombinedStorage
	Advisor Advisor
	Tokens  TokenIssuer
	Metrics *metrics.Metrics
}

// NewRouter собирает gin.Engine со всеми маршрутами API.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if deps.Metrics != nil {
		router.Use(middleware.RequestMetrics(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/v1/login", Login(deps.Tokens))

	cashback := NewCashbackHandler(deps.Store)
	advice := NewAdvisorHandler(deps.Advisor)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewAuthMiddleware(deps.Tokens).RequireAuth())
	{
		v1.POST("/month", cashback.SaveMonth)
		v1.PUT("/month", cashback.SaveMonth)
		v1.GET("/month", cashback.GetMonth)
		v1.PATCH("/month", cashback.PatchMonth)
		v1.GET("/search/category", cashback.SearchByCategory)
		v1.GET("/search/bank", cashback.SearchByBank)
		v1.PUT("/month/bank", cashback.UpdateBankCategories)
		v1.DELETE("/month/bank", cashback.DeleteBankFromMonth)
		v1.DELETE("/month/bank/category", cashback.DeleteCategoryFromBank)

		v1.POST("/recommendations", advice.Recommend)
		v1.GET("/recommendations", advice.Latest)
		v1.POST("/confirmations", advice.Confirm)
		v1.POST("/attributions", advice.Attribute)
	}
	return router
}

// Login выдаёт JWT для user_id.
func Login(tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}
		token, err := tokens.GenerateToken(req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}
