package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/export"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/qr"
	"github.com/iliyamo/event-checkin/internal/service"
)

// QR image size bounds accepted from ?size=.
const (
	minQRSize = 64
	maxQRSize = 1024
)

// TicketHandler serves the organizer endpoints: tickets, their QR
// images and share links, and the event settings.
type TicketHandler struct {
	App    *service.App
	Log    *zap.Logger
	QRSize int
}

// NewTicketHandler returns a TicketHandler.
func NewTicketHandler(app *service.App, log *zap.Logger, qrSize int) *TicketHandler {
	if app == nil {
		panic("nil app passed to NewTicketHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if qrSize <= 0 {
		qrSize = qr.DefaultSize
	}
	return &TicketHandler{App: app, Log: log, QRSize: qrSize}
}

// Create handles POST /v1/tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	var req service.NewTicket
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := h.App.Tickets.Create(ctx, req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// List handles GET /v1/tickets.  The list is read from the store;
// ?view=cache returns this instance's synchronized cache instead.
func (h *TicketHandler) List(c echo.Context) error {
	if c.QueryParam("view") == "cache" {
		return c.JSON(http.StatusOK, echo.Map{"tickets": h.App.Cache.Snapshot(), "sync": h.App.Sync.Status()})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.App.Tickets.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": list})
}

// Get handles GET /v1/tickets/:id.
func (h *TicketHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := h.App.Tickets.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /v1/tickets/:id.
func (h *TicketHandler) Delete(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.App.Tickets.Delete(ctx, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type deleteManyReq struct {
	IDs []string `json:"ids"`
}

// DeleteMany handles POST /v1/tickets/delete.
func (h *TicketHandler) DeleteMany(c echo.Context) error {
	var req deleteManyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	n, err := h.App.Tickets.DeleteMany(ctx, req.IDs)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// QR handles GET /v1/tickets/:id/qr.png.  The symbol encodes the
// ticket id only.
func (h *TicketHandler) QR(c echo.Context) error {
	size := h.QRSize
	if s := c.QueryParam("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "size must be between 64 and 1024"})
		}
		size = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := h.App.Tickets.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	png, err := qr.Encode(t.ID, size)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+export.FileName(t.ID)+`"`)
	return c.Blob(http.StatusOK, "image/png", png)
}

// Share handles GET /v1/tickets/:id/share.
func (h *TicketHandler) Share(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := h.App.Tickets.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	settings, err := h.App.Settings.Get(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"link":      export.ShareLink(settings.EventName, t.PhoneNumber),
		"message":   export.Message(settings.EventName),
		"file_name": export.FileName(t.ID),
	})
}

// GetSettings handles GET /v1/settings.
func (h *TicketHandler) GetSettings(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.App.Settings.Get(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// PutSettings handles PUT /v1/settings.  Omitted fields keep their value.
func (h *TicketHandler) PutSettings(c echo.Context) error {
	var patch model.EventSettings
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.App.Settings.Update(ctx, patch)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}
