package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"TwoDSentinel/internal/model"
	"TwoDSentinel/internal/recorder"
	"TwoDSentinel/internal/session"
)

const statusMessage = "TwoDSentinel Live Scheduler Running"

// ViewSource is the read side of the session machine.
type ViewSource interface {
	Current() session.View
}

// DataResponse is the body of GET /data.
type DataResponse struct {
	AM      model.Snapshot        `json:"AM"`
	PM      model.Snapshot        `json:"PM"`
	History []model.HistoryRecord `json:"history"`
}

// Handler serves the read-only snapshot API. It never triggers a fetch.
type Handler struct {
	router  *gin.Engine
	views   ViewSource
	history recorder.HistoryLog
	clock   session.Clock
	logger  *logrus.Logger
}

func NewHandler(views ViewSource, history recorder.HistoryLog, clock session.Clock, logger *logrus.Logger) *Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	h := &Handler{
		router:  router,
		views:   views,
		history: history,
		clock:   clock,
		logger:  logger,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/", h.status)
	h.router.GET("/data", h.data)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": statusMessage,
		"time":    h.clock.Now().Format(time.DateTime),
	})
}

// data returns the published snapshots and the full history. Storage errors
// degrade to an empty history rather than an error status.
func (h *Handler) data(c *gin.Context) {
	view := h.views.Current()

	records, err := h.history.ReadAll()
	if err != nil {
		h.logger.Errorf("read history: %v", err)
		records = nil
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}

	c.JSON(http.StatusOK, DataResponse{AM: view.AM, PM: view.PM, History: records})
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}
