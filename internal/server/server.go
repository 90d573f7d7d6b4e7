// Package server exposes the print hub over HTTP for the POS
// front-ends. Every fiscal endpoint answers the same envelope the hub
// produces; HTTP status codes follow the error taxonomy.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"printhub/internal/config"
	"printhub/internal/hub"
	"printhub/internal/logger"
	"printhub/internal/salesbook"
	"printhub/mhi"
)

const dateLayout = "2006-01-02"

// Server owns the gin engine and its routes.
type Server struct {
	hub *hub.Hub
	cfg *config.Config
	log logger.Logger
}

// New builds the HTTP server around a hub.
func New(h *hub.Hub, cfg *config.Config, log logger.Logger) *Server {
	return &Server{hub: h, cfg: cfg, log: log}
}

// Router assembles the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	if !s.cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(s.cfg.CORS.AllowedOrigins))
	r.Use(newIPRateLimiter(s.cfg.RateLimit.Requests, s.cfg.RateLimit.Duration).middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/print", s.printDocument)
		api.POST("/documents/:number/reprint", s.reprintDocument)
		api.POST("/no-sale", s.printNoSale)
		api.POST("/reports/x", s.printXReport)
		api.POST("/reports/z", s.printZReport)
		api.POST("/reports/z/date-range", s.printZByDate)
		api.POST("/reports/z/number-range", s.printZByNumber)
		api.GET("/status", s.getStatus)
		api.GET("/journal", s.getJournal)
		api.POST("/salesbook/export", s.exportSalesbook)
	}
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("listening on %s", addr)
	return s.Router().Run(addr)
}

func (s *Server) printDocument(c *gin.Context) {
	var tx mhi.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	respond(c, s.hub.PrintDocument(c.Request.Context(), &tx))
}

func (s *Server) reprintDocument(c *gin.Context) {
	respond(c, s.hub.ReprintDocument(c.Request.Context(), c.Param("number")))
}

func (s *Server) printNoSale(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is a plain drawer kick.
	_ = c.ShouldBindJSON(&req)
	respond(c, s.hub.PrintNoSale(c.Request.Context(), req.Reason))
}

func (s *Server) printXReport(c *gin.Context) {
	respond(c, s.hub.PrintXReport(c.Request.Context()))
}

func (s *Server) printZReport(c *gin.Context) {
	var req struct {
		CloseDay *bool `json:"close_day"`
	}
	_ = c.ShouldBindJSON(&req)
	closeDay := req.CloseDay == nil || *req.CloseDay
	respond(c, s.hub.PrintZReport(c.Request.Context(), closeDay))
}

func (s *Server) printZByDate(c *gin.Context) {
	var req struct {
		StartDate string `json:"start_date" binding:"required"`
		EndDate   string `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.Local)
	if err != nil {
		badRequest(c, "start_date", "expected YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, time.Local)
	if err != nil {
		badRequest(c, "end_date", "expected YYYY-MM-DD")
		return
	}
	respond(c, s.hub.PrintZReportByDate(c.Request.Context(), start, end))
}

func (s *Server) printZByNumber(c *gin.Context) {
	var req struct {
		Start int `json:"start" binding:"required"`
		End   int `json:"end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	respond(c, s.hub.PrintZReportByNumberRange(c.Request.Context(), req.Start, req.End))
}

func (s *Server) getStatus(c *gin.Context) {
	st, err := s.hub.GetStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": gin.H{
			"type": "transport", "message": err.Error(),
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": st})
}

func (s *Server) getJournal(c *gin.Context) {
	j := s.hub.Journal()
	if j == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{
			"type": "config", "message": "journaling is disabled",
		}})
		return
	}
	entries, err := j.Entries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{
			"type": "config", "message": err.Error(),
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries})
}

func (s *Server) exportSalesbook(c *gin.Context) {
	j := s.hub.Journal()
	if j == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{
			"type": "config", "message": "journaling is disabled",
		}})
		return
	}
	var req struct {
		StartDate string `json:"start_date" binding:"required"`
		EndDate   string `json:"end_date" binding:"required"`
		Path      string `json:"path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.Local)
	if err != nil {
		badRequest(c, "start_date", "expected YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, time.Local)
	if err != nil {
		badRequest(c, "end_date", "expected YYYY-MM-DD")
		return
	}
	path := req.Path
	if path == "" {
		path = s.cfg.Journal.SalesbookPath
	}
	rows, err := salesbook.Export(j, start, end, path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{
			"type": "config", "message": err.Error(),
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": rows, "path": path})
}

func respond(c *gin.Context, res *hub.Response) {
	c.JSON(statusFor(res), res)
}

// statusFor maps the error taxonomy to HTTP: caller mistakes are 400,
// fiscal state conflicts 409, wiring problems 500, and a printer that
// cannot be reached 502.
func statusFor(res *hub.Response) int {
	if res.Error == nil {
		return http.StatusOK
	}
	switch res.Error.Type {
	case "validation":
		return http.StatusBadRequest
	case "state":
		return http.StatusConflict
	case "config":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func badRequest(c *gin.Context, field, reason string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"type":    "validation",
			"field":   field,
			"message": reason,
		},
	})
}
