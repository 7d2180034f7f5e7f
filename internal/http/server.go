package http

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/example/queueline/internal/notify"
	"github.com/example/queueline/internal/queue"
	"github.com/example/queueline/internal/repository"
)

// Server wraps the gin engine and collaborators needed to handle API
// requests.
type Server struct {
	Engine *gin.Engine
	queue  *queue.Service
	hub    *notify.Hub
}

// NewServer constructs a new API server and registers routes.
func NewServer(svc *queue.Service, hub *notify.Hub) *Server {
	router := gin.Default()
	srv := &Server{Engine: router, queue: svc, hub: hub}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	// Root stays reachable even when the store connection failed at boot.
	s.Engine.GET("/", s.root)

	api := s.Engine.Group("/api")
	api.POST("/join", s.join)
	api.GET("/status/:ticketNumber", s.status)
	api.GET("/queue", s.listQueue)
	api.GET("/events", s.events)
	api.POST("/admin/next", s.callNext)
	api.DELETE("/admin/reset", s.reset)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "queueline", "status": "ok"})
}

func (s *Server) join(c *gin.Context) {
	var payload struct {
		Name        string `json:"name"`
		UrgencyType string `json:"type"`
		ServiceType string `json:"serviceType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceType is required"})
		return
	}

	ticket, err := s.queue.Join(c.Request.Context(), queue.JoinInput{
		Name:        payload.Name,
		UrgencyType: payload.UrgencyType,
		ServiceType: payload.ServiceType,
	})
	if err != nil {
		if errors.Is(err, queue.ErrMissingServiceType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.serverError(c, "join", err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) status(c *gin.Context) {
	number, err := strconv.ParseInt(c.Param("ticketNumber"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket number"})
		return
	}

	status, err := s.queue.Status(c.Request.Context(), number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		s.serverError(c, "status", err)
		return
	}

	// Served tickets report a null position and a zero estimate.
	var position *int
	if status.Position > 0 {
		position = &status.Position
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                status.Ticket.ID,
		"ticketNumber":      status.Ticket.TicketNumber,
		"status":            status.Ticket.Status,
		"name":              status.Ticket.Name,
		"type":              status.Ticket.UrgencyType,
		"serviceType":       status.Ticket.ServiceType,
		"position":          position,
		"queueLength":       status.QueueLength,
		"estimatedWaitTime": queue.EstimatedWaitText(status.EstimatedWaitMinutes),
	})
}

func (s *Server) listQueue(c *gin.Context) {
	waiting, err := s.queue.ListWaiting(c.Request.Context())
	if err != nil {
		s.serverError(c, "list queue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": waiting})
}

func (s *Server) callNext(c *gin.Context) {
	served, err := s.queue.CallNext(c.Request.Context())
	if err != nil {
		s.serverError(c, "call next", err)
		return
	}
	if served == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Queue empty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"served":  served,
		"message": "Now serving ticket " + strconv.FormatInt(served.TicketNumber, 10),
	})
}

func (s *Server) reset(c *gin.Context) {
	if err := s.queue.Reset(c.Request.Context()); err != nil {
		s.serverError(c, "reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Queue reset"})
}

// events streams queue_updated notifications to the client as server-sent
// events until the client disconnects.
func (s *Server) events(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// serverError logs the fault with its stack and answers with a generic 500.
// Persistence detail never reaches the client.
func (s *Server) serverError(c *gin.Context, op string, err error) {
	log.Printf("%s failed: %+v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
