// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h RouterHandlers) {
	// 认证管理
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/logout", h.Auth.Logout)
	}

	// 积分账户
	account := v1.Group("/account")
	{
		account.GET("/balance", h.Account.Balance)
		account.GET("/transactions", h.Account.Transactions)
		account.GET("/usage", h.Account.Usage)
	}

	// 内容生成
	writer := v1.Group("/writer")
	{
		writer.POST("/generate", h.Writer.Generate)
		writer.GET("/runs", h.Writer.ListRuns)
		writer.GET("/runs/:rid", h.Writer.GetRun)
		writer.GET("/contents/:cid", h.Writer.GetContent)
	}

	// 独立工具
	v1.POST("/detector/scan", h.Tools.Scan)
	v1.POST("/citations/format", h.Tools.FormatCitations)
	v1.POST("/research/generate", h.Tools.GenerateResearch)
	v1.POST("/prompts/optimize", h.Tools.OptimizePrompt)
}
