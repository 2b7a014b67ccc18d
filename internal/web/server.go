// Package web provides the browser-facing status dashboard for corefuzz,
// a read-only view over a live Monitor/Scheduler/Clusterer triple —
// the same daemon-style status reporter internal/ui renders as a TUI,
// served instead over HTTP/WebSocket for remote observation.
package web

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/monitor"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

// broadcastRatePerSec and broadcastBurst bound how often a stats/crash push
// reaches the WebSocket fan-out, independent of tickStats' own 1s cadence —
// a client re-subscribing mid-burst (reconnect storm) or a future caller
// pushing ad hoc updates can't flood s.broadcast past this rate.
const (
	broadcastRatePerSec = 5
	broadcastBurst      = 5
)

// Server serves the fuzzing-run dashboard over HTTP and pushes live
// updates to connected WebSocket clients. It never mutates the
// underlying run — Monitor/Scheduler/Clusterer are read-only here, the
// main loop is the only writer.
type Server struct {
	app   *fiber.App
	mon   *monitor.Monitor
	sched *corpus.Scheduler
	clust *monitor.Clusterer

	mu         sync.RWMutex
	targetPath string
	startTime  time.Time
	running    bool

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte

	limiter *rate.Limiter

	stopTick chan struct{}
}

// FuzzerStats is the JSON shape served at /api/stats and pushed over
// the WebSocket "stats" message type.
type FuzzerStats struct {
	IsRunning         bool    `json:"isRunning"`
	TargetPath        string  `json:"targetPath"`
	ElapsedTime       string  `json:"elapsedTime"`
	Executions        int64   `json:"executions"`
	Crashes           int64   `json:"crashes"`
	Hangs             int64   `json:"hangs"`
	Errors            int64   `json:"errors"`
	InterestingInputs int64   `json:"interestingInputs"`
	ExecsPerSec       float64 `json:"execsPerSec"`
	CoveragePercent   float64 `json:"coveragePercent"`
	CorpusSize        int     `json:"corpusSize"`
	FavoredSize       int     `json:"favoredSize"`
	Stagnant          bool    `json:"stagnant"`
}

// CrashLog is one deduplicated crash cluster, served at /api/crashes.
type CrashLog struct {
	ID             int      `json:"id"`
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
	MemberCount    int      `json:"memberCount"`
}

// NewServer creates a dashboard server reading from mon/sched/clust.
// targetPath is the fuzz target's command path, shown in the header.
func NewServer(targetPath string, mon *monitor.Monitor, sched *corpus.Scheduler, clust *monitor.Clusterer) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:        app,
		mon:        mon,
		sched:      sched,
		clust:      clust,
		targetPath: targetPath,
		startTime:  time.Now(),
		running:    true,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 100),
		limiter:    rate.NewLimiter(rate.Limit(broadcastRatePerSec), broadcastBurst),
		stopTick:   make(chan struct{}),
	}

	s.setupRoutes()
	go s.handleBroadcast()
	go s.tickStats()

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/crashes", s.handleCrashes)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))

	s.app.Get("/", s.handleDashboard)
	s.app.Get("/dashboard.js", s.handleDashboardJS)
	s.app.Get("/dashboard.css", s.handleDashboardCSS)
}

// snapshot composes the current FuzzerStats from the live run state.
func (s *Server) snapshot() FuzzerStats {
	s.mu.RLock()
	running := s.running
	targetPath := s.targetPath
	startTime := s.startTime
	s.mu.RUnlock()

	var stats FuzzerStats
	stats.IsRunning = running
	stats.TargetPath = targetPath
	if !startTime.IsZero() {
		stats.ElapsedTime = time.Since(startTime).Round(time.Second).String()
	}

	if s.mon != nil {
		m := s.mon.Snapshot()
		stats.Executions = m.Executions
		stats.Crashes = m.Crashes
		stats.Hangs = m.Hangs
		stats.Errors = m.Errors
		stats.InterestingInputs = m.InterestingInputs
		stats.ExecsPerSec = m.ExecsPerSec
		stats.CoveragePercent = m.CoveragePercent
	}
	if s.sched != nil {
		sc := s.sched.Snapshot()
		stats.CorpusSize = sc.Size
		stats.FavoredSize = sc.FavoredSize
		stats.Stagnant = sc.Stagnant
	}
	return stats
}

func (s *Server) crashLogs() []CrashLog {
	if s.clust == nil {
		return []CrashLog{}
	}
	clusters := s.clust.Clusters()
	out := make([]CrashLog, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, CrashLog{
			ID:             c.ID,
			Representative: c.Representative,
			Members:        c.Members,
			MemberCount:    len(c.Members),
		})
	}
	return out
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

func (s *Server) handleCrashes(c *fiber.Ctx) error {
	return c.JSON(s.crashLogs())
}

func (s *Server) handleWebSocket(c *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		c.Close()
	}()

	data, _ := json.Marshal(map[string]interface{}{
		"type": "stats",
		"data": s.snapshot(),
	})
	c.WriteMessage(websocket.TextMessage, data)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleBroadcast() {
	for msg := range s.broadcast {
		s.clientsMu.Lock()
		for client := range s.clients {
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()
	}
}

// tickStats pushes a stats snapshot to connected clients once a second,
// and a crash-log refresh once every five ticks.
func (s *Server) tickStats() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-s.stopTick:
			return
		case <-ticker.C:
			s.BroadcastStats()
			n++
			if n%5 == 0 {
				s.BroadcastCrashes()
			}
		}
	}
}

// BroadcastStats pushes a fresh stats snapshot to all connected clients,
// throttled by s.limiter.
func (s *Server) BroadcastStats() {
	if !s.limiter.Allow() {
		return
	}
	data, _ := json.Marshal(map[string]interface{}{
		"type": "stats",
		"data": s.snapshot(),
	})
	select {
	case s.broadcast <- data:
	default:
	}
}

// BroadcastCrashes pushes the current crash-cluster list to all
// connected clients, throttled by s.limiter.
func (s *Server) BroadcastCrashes() {
	if !s.limiter.Allow() {
		return
	}
	data, _ := json.Marshal(map[string]interface{}{
		"type": "crashes",
		"data": s.crashLogs(),
	})
	select {
	case s.broadcast <- data:
	default:
	}
}

// SetRunning marks the run as stopped (e.g. on SIGINT or deadline) and
// pushes one final stats update.
func (s *Server) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
	s.BroadcastStats()
}

// Start starts the web server, blocking until it exits.
func (s *Server) Start(addr string) error {
	log.Printf("web dashboard listening at http://localhost%s\n", addr)
	return s.app.Listen(addr)
}

// Stop shuts down the web server and its background ticker.
func (s *Server) Stop() error {
	close(s.stopTick)
	return s.app.Shutdown()
}
