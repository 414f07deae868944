// Package routes registers every HTTP endpoint.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/drivegate/app/controllers"
	"github.com/shashiranjanraj/drivegate/pkg/ctx"
	"github.com/shashiranjanraj/drivegate/pkg/middleware"
	"github.com/shashiranjanraj/drivegate/pkg/router"
)

// Deps are the handlers and hooks the routes are built from.
type Deps struct {
	System  *controllers.SystemController
	Auth    *controllers.AuthController
	Drive   *controllers.DriveController
	Session middleware.Authenticator

	// Links serves signed download links; nil when the driver presigns.
	Links   http.Handler
	Metrics http.Handler
}

// RegisterAPI mounts the legacy flat endpoints and their /api equivalents.
func RegisterAPI(r *router.Router, d Deps) {
	r.Get("/", "index", ctx.Wrap(d.System.Index))
	r.Get("/health", "health", ctx.Wrap(d.System.Health))
	if d.Metrics != nil {
		r.Handle("/metrics", "metrics", d.Metrics)
	}
	if d.Links != nil {
		r.Handle("/links/{token}", "links.show", d.Links)
	}

	r.Post("/login", "auth.login", ctx.Wrap(d.Auth.Login))
	r.Post("/logout", "auth.logout", ctx.Wrap(d.Auth.Logout))

	authed := r.Group("", middleware.Auth(d.Session))
	authed.Get("/list", "files.list", ctx.Wrap(d.Drive.List))
	authed.Post("/upload", "files.upload", ctx.Wrap(d.Drive.Upload))
	authed.Get("/download", "files.download", ctx.Wrap(d.Drive.Download))
	authed.Get("/download_link", "files.link", ctx.Wrap(d.Drive.DownloadLink))
	authed.Delete("/delete", "files.delete", ctx.Wrap(d.Drive.Delete))

	api := r.Group("/api", middleware.Auth(d.Session))
	api.Get("/files", "api.files.list", ctx.Wrap(d.Drive.List))
	api.Post("/files", "api.files.upload", ctx.Wrap(d.Drive.Upload))
	api.Get("/files/*", "api.files.link", ctx.Wrap(d.Drive.DownloadLink))
	api.Delete("/files/*", "api.files.delete", ctx.Wrap(d.Drive.Delete))
	api.Get("/quota", "api.quota", ctx.Wrap(d.Drive.Quota))
}
