// Package web provides the optional HTTP status server: health and status
// endpoints for operators plus the Prometheus metrics route.
package web

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercut-news/go-papercut/internal/nntp"
)

// WebServer serves the status endpoints next to the NNTP listener.
type WebServer struct {
	Router    *gin.Engine
	NNTP      *nntp.Server
	StartTime time.Time
}

// NewServer creates the status web server. The Prometheus registry may be
// nil when metrics are disabled; the /metrics route is then omitted.
func NewServer(nntpServer *nntp.Server, registry *prometheus.Registry) *WebServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	router.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	server := &WebServer{
		Router:    router,
		NNTP:      nntpServer,
		StartTime: time.Now(),
	}
	server.setupRoutes(registry)
	return server
}

// setupRoutes configures all HTTP routes.
func (s *WebServer) setupRoutes(registry *prometheus.Registry) {
	s.Router.GET("/", s.homeHandler)
	s.Router.GET("/healthz", s.healthHandler)
	s.Router.GET("/api/status", s.statusHandler)
	s.Router.GET("/api/groups", s.groupsHandler)
	if registry != nil {
		s.Router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
}

// Start runs the HTTP server; it blocks until the listener fails.
func (s *WebServer) Start(listen string) error {
	log.Printf("Status web server listening on %s", listen)
	return s.Router.Run(listen)
}

func (s *WebServer) homeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Papercut %s NNTP server\n", nntp.Version)
}

func (s *WebServer) healthHandler(c *gin.Context) {
	if !s.NNTP.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *WebServer) statusHandler(c *gin.Context) {
	stats := s.NNTP.Stats
	authOK, authFail := stats.GetAuthStats()
	c.JSON(http.StatusOK, gin.H{
		"version":            nntp.Version,
		"hostname":           s.NNTP.Config.Hostname,
		"server_type":        s.NNTP.Config.ServerType,
		"uptime":             stats.GetUptime().Round(time.Second).String(),
		"active_connections": stats.GetActiveConnections(),
		"total_connections":  stats.GetTotalConnections(),
		"commands":           stats.GetAllCommandCounts(),
		"auth_successes":     authOK,
		"auth_failures":      authFail,
	})
}

type groupInfo struct {
	Name  string `json:"name"`
	High  int    `json:"high"`
	Low   int    `json:"low"`
	Flag  string `json:"flag"`
	Error string `json:"error,omitempty"`
}

func (s *WebServer) groupsHandler(c *gin.Context) {
	var groups []groupInfo
	for _, backend := range s.NNTP.Router.Backends() {
		summaries, err := backend.ListGroups()
		if err != nil {
			groups = append(groups, groupInfo{Error: fmt.Sprintf("backend error: %v", err)})
			continue
		}
		for _, g := range summaries {
			groups = append(groups, groupInfo{
				Name: g.Name, High: g.High, Low: g.Low, Flag: g.Flag,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
