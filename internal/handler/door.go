package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/qr"
	"github.com/iliyamo/event-checkin/internal/service"
)

// maxFrameBytes caps uploaded camera frames (a 1920x1080 RGBA frame is
// about 8 MB).
const maxFrameBytes = 9 << 20

// streamKeepAlive is the comment interval on idle event streams.
const streamKeepAlive = 15 * time.Second

// DoorHandler serves the scanning devices.
type DoorHandler struct {
	App *service.App
	Log *zap.Logger
}

// NewDoorHandler returns a DoorHandler.
func NewDoorHandler(app *service.App, log *zap.Logger) *DoorHandler {
	if app == nil {
		panic("nil app passed to NewDoorHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DoorHandler{App: app, Log: log}
}

type scanReq struct {
	Payload string `json:"payload"`
}

type scanResp struct {
	Ignored bool              `json:"ignored,omitempty"`
	Outcome model.OutcomeKind `json:"outcome,omitempty"`
	Message string            `json:"message,omitempty"`
	Tone    string            `json:"tone,omitempty"`
	Ticket  *model.Ticket     `json:"ticket,omitempty"`
}

// Scan handles POST /v1/scan with a decoded QR payload.
func (h *DoorHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.submit(c, req.Payload)
}

// Frame handles POST /v1/scan/frame.  The body is a PNG or JPEG image,
// or a raw RGBA buffer when ?width= and ?height= are given.  Frames
// without a readable code answer 422 so the device keeps scanning.
func (h *DoorHandler) Frame(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFrameBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read frame failed"})
	}
	if len(body) > maxFrameBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "frame too large"})
	}

	var (
		payload string
		found   bool
	)
	if ws, hs := c.QueryParam("width"), c.QueryParam("height"); ws != "" || hs != "" {
		w, errW := strconv.Atoi(ws)
		ht, errH := strconv.Atoi(hs)
		if errW != nil || errH != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "width and height must be integers"})
		}
		payload, found, err = qr.DecodeRGBA(body, w, ht)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	} else {
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported image"})
		}
		payload, found = qr.DecodeImage(img)
	}
	if !found {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no qr code in frame"})
	}
	return h.submit(c, payload)
}

func (h *DoorHandler) submit(c echo.Context, payload string) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.App.Scan(ctx, middleware.DeviceID(c), payload)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if res.Ignored {
		return c.JSON(http.StatusOK, scanResp{Ignored: true})
	}
	out := res.Outcome
	return c.JSON(http.StatusOK, scanResp{
		Outcome: out.Kind,
		Message: out.Message(),
		Tone:    out.Tone(),
		Ticket:  out.Ticket,
	})
}

// SyncStatus handles GET /v1/sync/status.
func (h *DoorHandler) SyncStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.App.Sync.Status())
}

// Stream handles GET /v1/tickets/stream as server-sent events.  The
// first event is a snapshot of the cache; change events follow.  A
// "reset" event means the cache was reloaded and clients should refetch.
func (h *DoorHandler) Stream(c echo.Context) error {
	events, unsubscribe := h.App.Cache.Subscribe(64)
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", h.App.Cache.Snapshot()); err != nil {
		return nil
	}
	ping := time.NewTicker(streamKeepAlive)
	defer ping.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				h.Log.Debug("event stream closed", zap.Error(err))
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
