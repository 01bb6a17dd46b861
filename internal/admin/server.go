// Package admin is the operator panel: dashboard counts, the user and
// order lists, and the live keyword editor for the routing tables.
package admin

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/store"
)

// StartOpts holds configuration for the admin server.
type StartOpts struct {
	Store     *store.Store
	Districts *districts.Store
	Addr      string
	User      string // basic auth; empty Password disables auth
	Password  string
	Out       io.Writer
}

// Start launches the admin HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "admin: running at http://%s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("admin: store is required")
	}
	if opts.Districts == nil {
		return nil, fmt.Errorf("admin: districts store is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Password != "" {
		router.Use(gin.BasicAuth(gin.Accounts{opts.User: opts.Password}))
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, opts.Store, opts.Districts)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
