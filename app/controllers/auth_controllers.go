package controllers

import (
	"net/http"
	"strings"

	"github.com/shashiranjanraj/drivegate/app/services"
	"github.com/shashiranjanraj/drivegate/pkg/ctx"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController(service *services.AuthService) *AuthController {
	return &AuthController{service: service}
}

type loginInput struct {
	Credential string `json:"credential"`
	Bduss      string `json:"bduss"`
	SessionID  string `json:"session_id" validate:"nullable,alpha_dash,max=128"`
}

// credential prefers the generic field and falls back to the legacy alias.
func (in loginInput) credential() string {
	if c := strings.TrimSpace(in.Credential); c != "" {
		return c
	}
	return strings.TrimSpace(in.Bduss)
}

// Login handles POST /login.
func (ac *AuthController) Login(c *ctx.Context) {
	var in loginInput
	if err := c.BindJSON(&in); err != nil {
		c.Fail(err)
		return
	}

	cred := in.credential()
	if cred == "" {
		c.Error(http.StatusBadRequest, "missing_credential", "credential is required")
		return
	}

	res, err := ac.service.Login(c.Context(), cred, in.SessionID)
	if err != nil {
		c.Fail(err)
		return
	}

	c.Success(struct {
		*services.LoginResult
		Message string `json:"message"`
	}{res, "login successful"})
}

// Logout handles POST /logout. It never hard-fails.
func (ac *AuthController) Logout(c *ctx.Context) {
	if ac.service.Logout(c.R) {
		c.Success(map[string]string{"message": "logged out"})
		return
	}
	c.Warning(map[string]string{"message": "session not found or already expired"})
}
