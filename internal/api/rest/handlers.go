package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/smokewatch/internal/api/view"
	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/ingest"
)

// maxBodyBytes bounds an ingest request body.
const maxBodyBytes = 64 << 10

// errReadBody wraps failures to read an ingest body.
var errReadBody = errors.New("read request body")

// handlers groups the route handlers around the service.
type handlers struct {
	service Service
	checks  map[string]HealthCheck
}

// ingest stores one telemetry payload. The device is always told the request succeeded.
func (h *handlers) ingest(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := decodeBody(c)
	if err != nil {
		h.service.RejectPayload(ctx, telemetry.SourceHTTP, err)
	} else {
		h.service.Ingest(ctx, payload, telemetry.SourceHTTP)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// decodeBody reads and decodes the request body as JSON or CBOR.
func decodeBody(c *gin.Context) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadBody, err)
	}

	return ingest.Decode(body, c.ContentType())
}

// latest returns the most recently updated device, or the default record.
func (h *handlers) latest(c *gin.Context) {
	record := h.service.LatestDevice(c.Request.Context())

	c.JSON(http.StatusOK, view.FromRecord(&record))
}

// listDevices returns every current device record.
func (h *handlers) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, view.FromRecords(h.service.ListDevices(c.Request.Context())))
}

// getDevice returns one device record or 404.
func (h *handlers) getDevice(c *gin.Context) {
	record, ok := h.service.GetDevice(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	c.JSON(http.StatusOK, view.FromRecord(&record))
}

// deviceAlarms returns the alarm history of one device, newest first.
// An unknown device simply has no history.
func (h *handlers) deviceAlarms(c *gin.Context) {
	events := h.service.ListAlarmsFor(c.Request.Context(), c.Param("id"))

	c.JSON(http.StatusOK, view.FromEvents(events))
}

// listAlarms returns the alarm history, optionally filtered by ?device_id=.
func (h *handlers) listAlarms(c *gin.Context) {
	ctx := c.Request.Context()

	var events []telemetry.AlarmEvent

	if deviceID, ok := c.GetQuery("device_id"); ok {
		events = h.service.ListAlarmsFor(ctx, deviceID)
	} else {
		events = h.service.ListAlarms(ctx)
	}

	c.JSON(http.StatusOK, view.FromEvents(events))
}

// health reports liveness and the state of optional dependencies.
func (h *handlers) health(c *gin.Context) {
	status := "ok"
	checks := make(gin.H, len(h.checks))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](); err != nil {
			status = "degraded"
			checks[name] = err.Error()

			continue
		}

		checks[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}
