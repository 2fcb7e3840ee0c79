package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/ratelimit"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/web"
)

// maxBodyBytes caps JSON and form bodies. A selection is a few hundred bytes.
const maxBodyBytes = 16 << 10

// Decider turns an encoded vector into a decision. *classify.Adapter
// satisfies it.
type Decider interface {
	Decide(ctx context.Context, v features.FeatureVector) (*classify.Result, error)
}

// DecisionHandler serves the form page and the prediction API.
type DecisionHandler struct {
	decider  Decider
	renderer *web.Renderer
	limiter  *ratelimit.Limiter
	delay    time.Duration
	logger   *slog.Logger
}

func NewDecisionHandler(decider Decider, renderer *web.Renderer, limiter *ratelimit.Limiter, delay time.Duration, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{
		decider:  decider,
		renderer: renderer,
		limiter:  limiter,
		delay:    delay,
		logger:   logger,
	}
}

// Page handles GET / with the default selection and no decision.
func (h *DecisionHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, web.NewPage(features.DefaultSelection(), nil))
}

// Submit handles POST / from the form. The page is re-rendered with the
// submitted values, plus either the decision card or an error banner.
func (h *DecisionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		page := web.NewPage(features.DefaultSelection(), nil)
		page.Error = "Could not read the form."
		h.render(w, http.StatusBadRequest, page)
		return
	}

	sel, err := features.ParseSelection(r.PostForm)
	if err != nil {
		page := web.NewPage(sel, nil)
		page.Error = err.Error()
		h.render(w, http.StatusBadRequest, page)
		return
	}

	if h.limiter != nil {
		if ok, retry := h.limiter.Permit(r, "predict"); !ok {
			page := web.NewPage(sel, nil)
			page.Error = fmt.Sprintf("Too many requests. Try again in %d seconds.", retry)
			h.render(w, http.StatusTooManyRequests, page)
			return
		}
	}

	res, err := h.decide(r.Context(), sel)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		page := web.NewPage(sel, nil)
		page.Error = "The classifier is unavailable. Please try again."
		h.render(w, status, page)
		return
	}

	h.render(w, http.StatusOK, web.NewPage(sel, &res.Decision))
}

type predictResponse struct {
	*classify.Result
	Columns   []string           `json:"columns"`
	Selection features.Selection `json:"selection"`
	Card      web.Outcome        `json:"card"`
}

// Predict handles POST /v1/predict with a JSON selection.
func (h *DecisionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && h.limiter.Check(w, r, "predict") {
		return
	}

	sel, err := features.DecodeSelection(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.decide(r.Context(), sel)
	if err != nil {
		jsonError(w, "classifier unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Result:    res,
		Columns:   features.Names[:],
		Selection: sel,
		Card:      web.RenderOutcome(res.Decision),
	})
}

// Options handles GET /v1/options.
func (h *DecisionHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, features.FormSchema())
}

// decide encodes a validated selection, waits out the configured delay and
// asks the classifier.
func (h *DecisionHandler) decide(ctx context.Context, sel features.Selection) (*classify.Result, error) {
	if err := wait(ctx, h.delay); err != nil {
		return nil, err
	}

	v := features.Encode(sel)
	res, err := h.decider.Decide(ctx, v)
	if err != nil {
		h.logger.Error("decision failed", "err", err)
		return nil, err
	}
	h.logger.Info("decision",
		"outcome", res.Outcome,
		"confidence", res.Confidence,
		"confidence_source", res.ConfidenceSource,
		"classifier", res.Classifier,
		"response_time_ms", res.ResponseTimeMs,
	)
	return res, nil
}

func (h *DecisionHandler) render(w http.ResponseWriter, status int, page web.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Render(w, page); err != nil {
		h.logger.Error("render page failed", "err", err)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
