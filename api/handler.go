// Package api exposes the event log, settings and live alert state over
// HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"safewatch/alert"
	"safewatch/eventlog"
	"safewatch/settings"
	"safewatch/severity"
	"safewatch/synth"
)

// Player plays a preview tone.
type Player interface {
	Play(level severity.Level, force bool) bool
}

// Monitor reports session state for /api/status. Either field may be nil.
type Monitor interface {
	Running() bool
	InFlight() bool
}

type Handler struct {
	orch     *alert.Orchestrator
	settings *settings.Settings
	player   Player
	monitor  Monitor
}

func NewHandler(orch *alert.Orchestrator, s *settings.Settings, p Player, m Monitor) *Handler {
	return &Handler{orch: orch, settings: s, player: p, monitor: m}
}

// NewRouter builds the gin engine with recovery, CORS and rate limiting.
func NewRouter(h *Handler, rps int) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))
	router.Use(RateLimitMiddleware(rps))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/events", h.getEvents)
	r.GET("/api/events.csv", h.getEventsCSV)
	r.GET("/api/settings", h.getSettings)
	r.PUT("/api/settings", h.putSettings)
	r.POST("/api/preview", h.preview)
	r.GET("/api/status", h.status)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) events(c *gin.Context) ([]eventlog.Event, bool) {
	if s := c.Query("severity"); s != "" {
		level, err := severity.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		return h.orch.Events().Filter(level), true
	}
	return h.orch.Events().Events(), true
}

func (h *Handler) getEvents(c *gin.Context) {
	events, ok := h.events(c)
	if !ok {
		return
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim < len(events) {
			events = events[len(events)-lim:]
		}
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *Handler) getEventsCSV(c *gin.Context) {
	events, ok := h.events(c)
	if !ok {
		return
	}
	name := "safewatch-events-" + time.Now().Format("20060102-150405") + ".csv"
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if err := eventlog.WriteCSV(c.Writer, events); err != nil {
		c.Error(err)
	}
}

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Get())
}

type settingsPatch struct {
	Waveform *string  `json:"waveform"`
	Volume   *float64 `json:"volume"`
	Muted    *bool    `json:"muted"`
}

func (h *Handler) putSettings(c *gin.Context) {
	var p settingsPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	v := h.settings.Get()
	if p.Waveform != nil {
		v.Waveform = synth.Kind(*p.Waveform)
	}
	if p.Volume != nil {
		v.Volume = *p.Volume
	}
	if p.Muted != nil {
		v.Muted = *p.Muted
	}

	if err := h.settings.Apply(v); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, settings.ErrInvalid) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.settings.Get())
}

type previewRequest struct {
	Severity string `json:"severity"`
}

func (h *Handler) preview(c *gin.Context) {
	var req previewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}
	level := severity.High
	if req.Severity != "" {
		l, err := severity.Parse(req.Severity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		level = l
	}

	played := h.player.Play(level, true)
	c.JSON(http.StatusOK, gin.H{"severity": level, "played": played})
}

func (h *Handler) status(c *gin.Context) {
	resp := gin.H{"flash": nil, "banner": nil, "events": h.orch.Events().Len()}
	if level, on := h.orch.Flash(); on {
		resp["flash"] = level
	}
	if ev, on := h.orch.Banner(); on {
		resp["banner"] = ev
	}
	if h.monitor != nil {
		resp["running"] = h.monitor.Running()
		resp["in_flight"] = h.monitor.InFlight()
	}
	c.JSON(http.StatusOK, resp)
}
