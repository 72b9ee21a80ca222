package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/middleware"
	"github.com/playmatatu/billiards/internal/session"
)

const commandTimeout = 5 * time.Second

// respondError maps session and physics errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrTableNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
	case errors.Is(err, session.ErrTooManyTables):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrShotRejected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrInvalidTick):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrTableClosed), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// tableFromParam loads the table named by :id, writing the error response
// itself when it cannot.
func tableFromParam(c *gin.Context, mgr *session.Manager) (*session.Table, bool) {
	t, err := mgr.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return t, true
}

func commandContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), commandTimeout)
}

// CreateTable racks a new table and hands back its control token in
// X-Table-Token.
func CreateTable(mgr *session.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := mgr.Create()
		if err != nil {
			respondError(c, err)
			return
		}
		token, exp, err := middleware.IssueTableToken(cfg, t.ID)
		if err != nil {
			log.Printf("[ERROR] Failed to sign token for table %s: %v", t.ID, err)
			_ = mgr.Close(t.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Header("X-Table-ID", t.ID)
		c.Header("X-Table-Token", token)
		c.Header("X-Table-Token-Expires", exp.UTC().Format(time.RFC3339))
		c.JSON(http.StatusCreated, t.Snapshot())
	}
}

// ListTables returns the IDs of live tables.
func ListTables(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tables": mgr.IDs()})
	}
}

// GetTable returns the current state of a table.
func GetTable(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := tableFromParam(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, t.Snapshot())
	}
}

// TakeShot strikes the cue ball.
func TakeShot(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Direction *game.Vec2 `json:"direction" binding:"required"`
			Magnitude float64    `json:"magnitude" binding:"required"`
			Screw     float64    `json:"screw"`
			English   float64    `json:"english"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Direction and magnitude required."})
			return
		}

		t, ok := tableFromParam(c, mgr)
		if !ok {
			return
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		shot := game.Shot{Direction: *req.Direction, Magnitude: req.Magnitude, Screw: req.Screw, English: req.English}
		if err := t.Shoot(ctx, shot); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, t.Snapshot())
	}
}

// Rerack resets a table to the opening layout.
func Rerack(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := tableFromParam(c, mgr)
		if !ok {
			return
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		if err := t.Rerack(ctx); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t.Snapshot())
	}
}

// PlaceCueBall puts the cue ball in hand.
func PlaceCueBall(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			X *float64 `json:"x" binding:"required"`
			Y *float64 `json:"y" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. x and y required."})
			return
		}

		t, ok := tableFromParam(c, mgr)
		if !ok {
			return
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		if err := t.PlaceCueBall(ctx, game.NewVec2(*req.X, *req.Y)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t.Snapshot())
	}
}

// AdvanceTable steps a table by dt seconds. Used when the server runs
// without a ticker.
func AdvanceTable(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DT    *float64 `json:"dt" binding:"required"` // zero is a valid no-op step
			Ticks int      `json:"ticks"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. dt required."})
			return
		}
		if req.Ticks <= 0 {
			req.Ticks = 1
		}
		if req.Ticks > 10000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticks must be at most 10000"})
			return
		}

		t, ok := tableFromParam(c, mgr)
		if !ok {
			return
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		results := make([]game.TickResult, 0, req.Ticks)
		for i := 0; i < req.Ticks; i++ {
			res, err := t.Advance(ctx, *req.DT)
			if err != nil {
				respondError(c, err)
				return
			}
			results = append(results, res)
			if res.State == game.StateIdle {
				break
			}
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "table": t.Snapshot()})
	}
}

// ShotHistory lists the recorded shots of a table.
func ShotHistory(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		shots, err := mgr.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shots": shots})
	}
}

// CloseTable stops a table.
func CloseTable(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := mgr.Close(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
