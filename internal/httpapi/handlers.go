package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"callsync/internal/backfill"
	"callsync/internal/runlog"
)

// Runner is the slice of the backfill runner the handlers need.
type Runner interface {
	Start(ctx context.Context, req backfill.Request) (string, error)
	Cancel() error
	Progress() backfill.Snapshot
}

// RunLister serves run history.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]runlog.Event, error)
}

type Handlers struct {
	Runner Runner
	Runs   RunLister
	Log    *slog.Logger
}

// startPayload accepts plain dates (how operators think about backfill
// ranges) as well as full RFC3339 timestamps.
type startPayload struct {
	From            string `json:"from" binding:"required"`
	To              string `json:"to" binding:"required"`
	ChunkDays       int    `json:"chunk_days"`
	Mode            string `json:"mode"`
	OnlyMissingLink bool   `json:"only_missing_link"`
}

func (h Handlers) StartBackfill(c *gin.Context) {
	var p startPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	from, err := parseDate(p.From)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	to, err := parseDate(p.To)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}

	runID, err := h.Runner.Start(c.Request.Context(), backfill.Request{
		From:            from,
		To:              to,
		ChunkDays:       p.ChunkDays,
		Mode:            backfill.Mode(p.Mode),
		OnlyMissingLink: p.OnlyMissingLink,
	})
	switch {
	case errors.Is(err, backfill.ErrAlreadyRunning):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (h Handlers) CancelBackfill(c *gin.Context) {
	if err := h.Runner.Cancel(); err != nil {
		if errors.Is(err, backfill.ErrNotRunning) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no run in progress"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "canceling"})
}

func (h Handlers) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, h.Runner.Progress())
}

func (h Handlers) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..200"})
			return
		}
		limit = n
	}

	runs, err := h.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("run history query failed", "err", err)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "run history unavailable"})
		return
	}
	if runs == nil {
		runs = []runlog.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("expected YYYY-MM-DD or RFC3339")
}
