// Package api exposes the adapter's read-mostly HTTP surface: counters,
// routing configuration, dynamic config changes and a topology drawing.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mia-go/pkg/router"
	"mia-go/pkg/stats"
	"mia-go/pkg/topoviz"
)

// Server wires the HTTP handlers to the running router.
type Server struct {
	Api      *echo.Echo
	router   *router.Router
	counters *stats.Counters
	listen   string
}

// NewServer builds the API for a running router.
func NewServer(listen string, rt *router.Router, counters *stats.Counters) *Server {
	e := echo.New()
	e.HideBanner = true
	s := &Server{
		Api:      e,
		router:   rt,
		counters: counters,
		listen:   listen,
	}
	e.GET("/stats", s.GetStats)
	e.GET("/routes", s.GetRoutes)
	e.POST("/config", s.PostConfig)
	e.GET("/topology.dot", s.GetTopologyDOT)
	e.GET("/topology.svg", s.GetTopologySVG)
	return s
}

func (s *Server) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.counters.Snapshot())
}

func (s *Server) GetRoutes(c echo.Context) error {
	return c.JSON(http.StatusOK, s.router.RoutesSnapshot())
}

func (s *Server) PostConfig(c echo.Context) error {
	var change router.ConfigChange
	if err := c.Bind(&change); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.router.ApplyConfig(change)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "applied"})
}

func (s *Server) topology() topoviz.Topology {
	return topoviz.Topology{
		Listen: s.router.EndpointAddrs(),
		Dests:  s.router.DestAddrs(),
	}
}

func (s *Server) GetTopologyDOT(c echo.Context) error {
	return c.String(http.StatusOK, s.topology().GenerateDOT())
}

func (s *Server) GetTopologySVG(c echo.Context) error {
	img, err := s.topology().GenerateImage()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/svg+xml", img)
}

// Run starts serving. It blocks until Shutdown.
func (s *Server) Run() error {
	return s.Api.Start(s.listen)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Api.Shutdown(ctx)
}
