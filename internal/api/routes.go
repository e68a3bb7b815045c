package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/aocrank/internal/crank"
	"github.com/zulandar/aocrank/internal/metrics"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/monitor"
	"github.com/zulandar/aocrank/internal/trace"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/", handleHealth())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/traces", handleTraces(opts.Traces))

	router.GET("/monitors", handleMonitorList(opts.Monitors))
	router.GET("/monitors/:id", handleMonitorGet(opts.Monitors))
	router.POST("/monitors/:id", handleMonitorStart(opts.Monitors))
	router.DELETE("/monitors/:id", handleMonitorStop(opts.Monitors))

	if opts.Cranker != nil {
		router.POST("/results", handleResult(opts.Cranker))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// writeError maps validation, not-found and collaborator errors to statuses.
// A crank that failed partly on a collaborator is a 502 so it is retried.
func writeError(c *gin.Context, err error) {
	var ve *models.ValidationError
	var se *crank.StageError
	switch {
	case errors.As(err, &se) && !crank.IsFatal(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stage": se.Stage})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": ve.Field})
	case errors.Is(err, monitor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer", "field": name})
		return 0, false
	}
	return n, true
}

func handleTraces(traces TraceFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		found, err := traces.Find(c.Request.Context(), trace.Criteria{
			ID:      c.Query("id"),
			Process: c.Query("process"),
			Wallet:  c.Query("wallet"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"traces": found, "limit": limit, "offset": offset})
	}
}

func handleMonitorList(monitors MonitorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		procs, err := monitors.FindAll(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"monitors": procs})
	}
}

func handleMonitorGet(monitors MonitorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		proc, err := monitors.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, proc)
	}
}

// handleMonitorStart starts monitoring a process. The request body, if any,
// is stored as the process data. ?authorized=false registers the process
// without polling it.
func handleMonitorStart(monitors MonitorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
			return
		}
		var data models.JSON
		if len(bytes.TrimSpace(body)) > 0 {
			if !json.Valid(body) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "body must be JSON"})
				return
			}
			data = models.JSON(body)
		}
		authorized := c.DefaultQuery("authorized", "true") != "false"

		id, err := monitors.Save(c.Request.Context(), models.MonitoredProcess{
			ID:          c.Param("id"),
			Authorized:  authorized,
			ProcessData: data,
			CreatedAt:   models.NowMillis(),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func handleMonitorStop(monitors MonitorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := monitors.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	}
}

// handleResult cranks a submitted result and reports the transaction built
// for each message.
func handleResult(cranker Cranker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r crank.Result
		if err := c.ShouldBindJSON(&r); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := cranker.CrankResult(c.Request.Context(), r)
		if err != nil {
			writeError(c, err)
			return
		}
		txs := make([]gin.H, 0, len(out.Contexts))
		for _, cc := range out.Contexts {
			txs = append(txs, gin.H{
				"messageId":      cc.Message.ID,
				"txId":           cc.Tx.ID,
				"target":         cc.Message.Msg.Target,
				"wallet":         cc.Wallet(),
				"tagAssignments": cc.TagAssignments,
			})
		}
		c.JSON(http.StatusOK, gin.H{"fromTxId": r.FromTxID, "messages": txs, "spawns": out.SpawnIDs})
	}
}
