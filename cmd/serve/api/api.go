package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/labstack/echo/v4"

	"github.com/stackmill/awsmod/internal/module"
)

type ServeCmdOpts struct {
	Port string
}

type Server struct {
	registry *module.Registry
	port     string
}

func NewServer(registry *module.Registry, opts ServeCmdOpts) *Server {
	return &Server{
		registry: registry,
		port:     opts.Port,
	}
}

func (s *Server) Run() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "awsmod",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	e.GET("/v1/modules", s.handleListModules)
	e.GET("/v1/modules/:name", s.handleGetModule)
	e.POST("/v1/modules/:name", s.handleRunModule)

	serverAddr := fmt.Sprintf("localhost:%s", s.port)
	fullURL := fmt.Sprintf("http://%s", serverAddr)
	fmt.Printf("\nawsmod api is available at %s\n", color.New(color.FgGreen).Sprint(fullURL))

	e.Logger.Fatal(e.Start(serverAddr))

	return nil
}

func (s *Server) handleListModules(c echo.Context) error {
	out := []map[string]any{}
	for _, name := range s.registry.Names() {
		m, _ := s.registry.Get(name)
		out = append(out, map[string]any{
			"name":    m.Name(),
			"summary": m.Summary(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleGetModule(c echo.Context) error {
	m, ok := s.registry.Get(c.Param("name"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]any{
			"error":   "Module not found",
			"message": fmt.Sprintf("no module named %q", c.Param("name")),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"name":    m.Name(),
		"summary": m.Summary(),
		"doc":     m.Doc(),
	})
}

func (s *Server) handleRunModule(c echo.Context) error {
	m, ok := s.registry.Get(c.Param("name"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]any{
			"error":   "Module not found",
			"message": fmt.Sprintf("no module named %q", c.Param("name")),
		})
	}

	raw := map[string]any{}
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Invalid parameter document",
			"message": "Request body must be a JSON object of module parameters",
		})
	}

	checkMode := c.QueryParam("check") == "true"

	result := module.Execute(c.Request().Context(), m, raw, checkMode)

	// Failed results are still well formed result documents, so they come back
	// as 200 with failed=true, mirroring the CLI contract.
	return c.JSON(http.StatusOK, result)
}
