// Package apitest provides an in-memory stand-in for the work-order API,
// for tests that drive the client end to end.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// Server records every order it holds and every request it saw. Fail*
// fields inject error statuses; a Hang* entry makes the handler stall past
// any sensible client timeout.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	clock    time.Time
	Active   []models.Order
	Archived []models.Order

	// FailCreate maps RO -> status returned instead of creating.
	FailCreate map[string]int
	// FailArchive maps order id -> status; "*" applies to every id.
	FailArchive map[string]int
	// FailDelete maps order id -> status.
	FailDelete map[string]int
	// FailList makes GET /orders and GET /archives answer with this status.
	FailList int
	// HangCreate stalls POST /orders for the given RO.
	HangCreate map[string]time.Duration
	// BulkDuplicates, when set, makes the bulk endpoint skip archived
	// ROs already present in the same month and report the count.
	BulkDuplicates bool

	RequestIDs []string
	Calls      []string
}

// NewServer starts the fake API. Close it when done.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		clock:       time.Date(2025, 12, 30, 8, 0, 0, 0, time.UTC),
		FailCreate:  map[string]int{},
		FailArchive: map[string]int{},
		FailDelete:  map[string]int{},
		HangCreate:  map[string]time.Duration{},
	}

	router := gin.New()
	router.Use(s.record)
	api := router.Group("/api")
	api.GET("/orders", s.listOrders)
	api.POST("/orders", s.createOrder)
	api.DELETE("/orders/:id", s.deleteOrder)
	api.POST("/orders/:id/archive", s.archiveOrder)
	api.GET("/archives", s.listArchives)
	api.POST("/archives/bulk", s.bulkArchive)

	s.Server = httptest.NewServer(router)
	return s
}

// BaseURL is the API root to hand to api.NewClient.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Seed appends active orders, assigning ids and timestamps where missing.
func (s *Server) Seed(orders ...models.Order) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		o = s.stamp(o)
		s.Active = append(s.Active, o)
		out = append(out, o)
	}
	return out
}

// SeedArchived appends archived orders.
func (s *Server) SeedArchived(orders ...models.Order) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		o = s.stamp(o)
		s.Archived = append(s.Archived, o)
		out = append(out, o)
	}
	return out
}

// Snapshot returns copies of both collections.
func (s *Server) Snapshot() (active, archived []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.Active...), append([]models.Order(nil), s.Archived...)
}

// CallCount counts recorded calls matching "METHOD /path".
func (s *Server) CallCount(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *Server) stamp(o models.Order) models.Order {
	if o.ID == "" {
		s.seq++
		o.ID = fmt.Sprintf("%024x", s.seq)
	}
	if o.CreatedAt == "" {
		s.clock = s.clock.Add(time.Minute)
		o.CreatedAt = models.FormatTimestamp(s.clock)
		o.UpdatedAt = o.CreatedAt
	}
	return o
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.RequestIDs = append(s.RequestIDs, c.GetHeader("X-Request-ID"))
	s.Calls = append(s.Calls, c.Request.Method+" "+c.FullPath())
	s.mu.Unlock()
	c.Next()
}

func (s *Server) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != 0 {
		c.JSON(s.FailList, gin.H{"error": "Failed to fetch orders"})
		return
	}
	orders := append([]models.Order{}, s.Active...)
	c.JSON(http.StatusOK, orders)
}

func (s *Server) createOrder(c *gin.Context) {
	var o models.Order
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	hang := s.HangCreate[o.RO]
	s.mu.Unlock()
	if hang > 0 {
		select {
		case <-time.After(hang):
		case <-c.Request.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.FailCreate[o.RO]; ok {
		c.JSON(status, gin.H{"error": "Failed to create order"})
		return
	}
	if o.Customer == "" || o.Unit == "" || o.RO == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	o.ID = ""
	o.CreatedAt = ""
	o = s.stamp(o)
	s.Active = append(s.Active, o)
	c.JSON(http.StatusCreated, o)
}

func (s *Server) deleteOrder(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.FailDelete[id]; ok {
		c.JSON(status, gin.H{"error": "Failed to delete order"})
		return
	}
	for i, o := range s.Active {
		if o.ID == id {
			s.Active = append(s.Active[:i], s.Active[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully", "order": o})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
}

func (s *Server) archiveOrder(c *gin.Context) {
	id := c.Param("id")
	var body struct {
		ArchiveMonth string `json:"archiveMonth"`
	}
	_ = c.ShouldBindJSON(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.FailArchive[id]; ok {
		c.JSON(status, gin.H{"error": "Failed to archive order"})
		return
	}
	if status, ok := s.FailArchive["*"]; ok {
		c.JSON(status, gin.H{"error": "Failed to archive order"})
		return
	}
	for i, o := range s.Active {
		if o.ID != id {
			continue
		}
		month := body.ArchiveMonth
		if month == "" {
			month = models.ArchiveMonthLabel(s.clock)
		}
		s.Active = append(s.Active[:i], s.Active[i+1:]...)
		archived := o
		archived.ID = ""
		archived.CreatedAt = ""
		archived.ArchiveMonth = month
		archived.DateCompleted = models.Today(s.clock)
		archived = s.stamp(archived)
		s.Archived = append(s.Archived, archived)
		c.JSON(http.StatusOK, gin.H{"message": "Order archived successfully", "archivedOrder": archived, "archiveMonth": month})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
}

func (s *Server) listArchives(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != 0 {
		c.JSON(s.FailList, gin.H{"error": "Failed to fetch archives"})
		return
	}
	grouped := map[string][]models.Order{}
	for _, o := range s.Archived {
		grouped[o.ArchiveMonth] = append(grouped[o.ArchiveMonth], o)
	}
	c.JSON(http.StatusOK, grouped)
}

func (s *Server) bulkArchive(c *gin.Context) {
	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	archived, skipped := 0, 0
	for _, o := range body.Orders {
		if s.BulkDuplicates && s.hasArchived(o.RO, o.ArchiveMonth) {
			skipped++
			continue
		}
		o.ID = ""
		o.CreatedAt = ""
		s.Archived = append(s.Archived, s.stamp(o))
		archived++
	}

	resp := gin.H{"archived": archived}
	if s.BulkDuplicates {
		resp["duplicates"] = skipped
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) hasArchived(ro, month string) bool {
	for _, o := range s.Archived {
		if o.RO == ro && o.ArchiveMonth == month {
			return true
		}
	}
	return false
}
