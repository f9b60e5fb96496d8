package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docshare/docshare/internal/auth"
	"github.com/docshare/docshare/internal/middleware"
	"github.com/docshare/docshare/internal/models"
)

func handleRegister(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, err := authService.Register(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully",
			"userId":  user.ID,
		})
	}
}

func handleLogin(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		resp, err := authService.Login(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func handleLogout(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authService.Logout(c.Request.Context(), c.GetString(middleware.ContextToken)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// handleGetMe 获取当前用户信息
func handleGetMe(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authService.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func handleListUsers(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := authService.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func handleGetUser(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		user, err := authService.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
