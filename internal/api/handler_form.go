package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/capture"
	"diesel-manager-web/internal/form"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/guard"
	"diesel-manager-web/internal/web"
)

var formPaths = map[form.Kind]string{
	form.KindUsage:     guard.PathUsage,
	form.KindReceiving: guard.PathReceiving,
}

// engine returns the session's engine for kind, creating and loading it on
// first use.
func (h *Handler) engine(c *gin.Context, kind form.Kind) (*form.Engine, error) {
	handle, st := current(c)
	e, created := h.forms.GetOrCreate(handle.ID(), kind, func() *form.Engine {
		role := st.Role()
		return form.New(form.DefinitionFor(kind, role), role, st.Profile, h.svc.As(handle), h.formOptions())
	})
	if created {
		if err := e.Load(c.Request.Context()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (h *Handler) formOptions() form.Options {
	return form.Options{
		Debounce:        h.cfg.Form.Debounce,
		MinLookupLength: h.cfg.Form.MinLookupLength,
	}
}

// FormPage renders an entry form.
func (h *Handler) FormPage(kind form.Kind) gin.HandlerFunc {
	route, _ := guard.Lookup(formPaths[kind])
	return func(c *gin.Context) {
		e, err := h.engine(c, kind)
		if err != nil {
			h.failPage(c, route.Title, err, "Failed to load the form")
			return
		}
		c.HTML(http.StatusOK, "form.html", h.page(c, route.Title, web.FormPage{
			Kind:            string(kind),
			DebounceMillis:  h.cfg.Form.DebounceMillis,
			Fields:          formFields(e.Definition(), e.Snapshot()),
			RequiresCapture: e.Definition().RequiresCapture,
		}))
	}
}

// formJSON wraps a form endpoint: it resolves the engine and maps an expired
// session to 401.
func (h *Handler) formJSON(kind form.Kind, fn func(c *gin.Context, e *form.Engine)) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := h.engine(c, kind)
		if err != nil {
			if h.expired(c, err, true) {
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": gateway.UserMessage(err, "Failed to load the form")})
			return
		}
		fn(c, e)
	}
}

// FormState returns the current snapshot.
func (h *Handler) FormState(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		c.JSON(http.StatusOK, e.Snapshot())
	})
}

type fieldRequest struct {
	Name   string   `json:"name" binding:"required"`
	Value  string   `json:"value"`
	Values []string `json:"values"`
	Seq    uint64   `json:"seq"`
}

// FormField applies one edit. A values array targets a multi-select. Seq
// numbers the browser's edits per field so a late request cannot overwrite
// a newer value.
func (h *Handler) FormField(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		var req fieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		if req.Values != nil {
			err = e.SetMultiSeq(req.Name, req.Values, req.Seq)
		} else {
			err = e.SetFieldSeq(req.Name, req.Value, req.Seq)
		}
		switch {
		case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrFieldDisabled):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, form.ErrClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, e.Snapshot())
	})
}

type blurRequest struct {
	Name string `json:"name" binding:"required"`
}

// FormBlur records that a field lost focus.
func (h *Handler) FormBlur(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		var req blurRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		e.Blur(req.Name)
		c.JSON(http.StatusOK, e.Snapshot())
	})
}

// FormPhoto attaches an uploaded meter photo, re-encoded through the camera
// pipeline.
func (h *Handler) FormPhoto(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		fh, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		if fh.Size > capture.MaxStillBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo is too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, capture.MaxStillBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		photo, err := capture.PhotoFromUpload(c.Request.Context(), fh.Filename, data)
		if errors.Is(err, capture.ErrFrameTooLarge) {
			log.WithError(err).Info("rejected oversized photo")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo resolution is too high"})
			return
		}
		if err != nil {
			log.WithError(err).Info("rejected photo upload")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read the photo"})
			return
		}
		e.AttachPhoto(photo)
		c.JSON(http.StatusOK, e.Snapshot())
	})
}

// SignatureOptions starts a fingerprint signature capture.
func (h *Handler) SignatureOptions(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		req, err := capture.NewWebAuthn(h.client(c)).Begin(c.Request.Context())
		if err != nil {
			if h.expired(c, err, true) {
				return
			}
			msg := gateway.UserMessage(err, "Unable to start signature capture")
			e.CaptureFailed(msg)
			c.JSON(http.StatusBadGateway, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, req)
	})
}

type verifyRequest struct {
	Assertion *backend.Assertion `json:"assertion"`
	Error     string             `json:"error"`
}

// SignatureVerify completes a capture. The browser reports cancelled or
// unsupported captures through Error.
func (h *Handler) SignatureVerify(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Assertion == nil {
			msg := req.Error
			if msg == "" {
				msg = "Signature capture was cancelled"
			}
			e.CaptureFailed(msg)
			c.JSON(http.StatusOK, e.Snapshot())
			return
		}

		res, err := capture.NewWebAuthn(h.client(c)).Finish(c.Request.Context(), *req.Assertion)
		switch {
		case err == nil:
			e.CaptureSucceeded(res.Token)
		case errors.Is(err, capture.ErrNotVerified):
			e.CaptureFailed("Signature could not be verified. Please try again.")
		default:
			if h.expired(c, err, true) {
				return
			}
			e.CaptureFailed(gateway.UserMessage(err, "Signature verification failed"))
		}
		c.JSON(http.StatusOK, e.Snapshot())
	})
}

// FormSubmit runs the submit lifecycle. The snapshot is always returned so
// the page can show field errors or the banner.
func (h *Handler) FormSubmit(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		err := e.Submit(c.Request.Context())
		status := http.StatusOK
		switch {
		case err == nil:
			handle, _ := current(c)
			h.purgeCache(handle.ID())
		case h.expired(c, err, true):
			return
		case errors.Is(err, form.ErrInvalid), errors.Is(err, form.ErrCaptureRequired):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, form.ErrBusy), errors.Is(err, form.ErrClosed):
			status = http.StatusConflict
		default:
			status = http.StatusBadGateway
		}
		body := gin.H{"state": e.Snapshot()}
		if err != nil {
			body["error"] = err.Error()
		}
		c.JSON(status, body)
	})
}

// FormReset restores the initial form.
func (h *Handler) FormReset(kind form.Kind) gin.HandlerFunc {
	return h.formJSON(kind, func(c *gin.Context, e *form.Engine) {
		e.Reset()
		c.JSON(http.StatusOK, e.Snapshot())
	})
}
