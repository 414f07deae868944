package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/drivegate/pkg/ctx"
	"github.com/shashiranjanraj/drivegate/pkg/router"
)

// SystemInfo describes the running service on GET /.
type SystemInfo struct {
	Name    string
	Version string
	Driver  string
	Mode    string
}

// SystemController serves the unauthenticated index and health endpoints.
type SystemController struct {
	info     SystemInfo
	routes   func() []router.Route
	sessions func() int
}

func NewSystemController(info SystemInfo, routes func() []router.Route, sessions func() int) *SystemController {
	return &SystemController{info: info, routes: routes, sessions: sessions}
}

type endpoint struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Name   string `json:"name,omitempty"`
}

// Index handles GET /.
func (sc *SystemController) Index(c *ctx.Context) {
	routes := sc.routes()
	endpoints := make([]endpoint, 0, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, endpoint{Path: r.Path, Method: r.Method, Name: r.Name})
	}

	c.JSON(http.StatusOK, map[string]any{
		"name":      sc.info.Name,
		"version":   sc.info.Version,
		"driver":    sc.info.Driver,
		"auth_mode": sc.info.Mode,
		"endpoints": endpoints,
	})
}

// Health handles GET /health.
func (sc *SystemController) Health(c *ctx.Context) {
	c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"message":  "service is running",
		"sessions": sc.sessions(),
	})
}
