// Package api exposes the live session and the crew chief over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/crewchief"
	"github.com/mpapenbr/crewchief/pkg/crewchief/llm"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/session"
)

const PathPrefix = "/api/v1"

var errNoState = errors.New("no lap processed yet")

type (
	// LiveSession is implemented by *session.Session
	LiveSession interface {
		Current() *model.TickResult
		Status() session.Status
		Restart(ctx context.Context) (*model.TickResult, error)
		Pause()
		Resume()
		Subscribe() <-chan *model.TickResult
		CancelSubscription(ch <-chan *model.TickResult)
	}
	// CrewChief is implemented by *crewchief.Service
	CrewChief interface {
		Insight(ctx context.Context, carNum string) (*crewchief.Insight, error)
		Ask(ctx context.Context, question, carNum string) (*crewchief.Answer, error)
	}

	Handler struct {
		session LiveSession
		chief   CrewChief
		l       *log.Logger
	}
	Option func(*Handler)

	insightRequest struct {
		CarNumber string `json:"carNumber"`
	}
	askRequest struct {
		Question  string `json:"question"`
		CarNumber string `json:"carNumber"`
	}
	errorResponse struct {
		Error string `json:"error"`
	}
)

func WithSession(s LiveSession) Option {
	return func(h *Handler) {
		h.session = s
	}
}

func WithCrewChief(c CrewChief) Option {
	return func(h *Handler) {
		h.chief = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.l = l
	}
}

func NewHandler(opts ...Option) *Handler {
	ret := &Handler{
		l: log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Register adds all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+PathPrefix+"/state", h.getState)
	mux.HandleFunc("GET "+PathPrefix+"/cars/{carNum}", h.getCar)
	mux.HandleFunc("GET "+PathPrefix+"/stream", h.stream)
	mux.HandleFunc("GET "+PathPrefix+"/session", h.getSession)
	mux.HandleFunc("POST "+PathPrefix+"/session/restart", h.restart)
	mux.HandleFunc("POST "+PathPrefix+"/session/pause", h.pause)
	mux.HandleFunc("POST "+PathPrefix+"/session/resume", h.resume)
	mux.HandleFunc("POST "+PathPrefix+"/crew-chief/insight", h.insight)
	mux.HandleFunc("POST "+PathPrefix+"/crew-chief/ask", h.ask)
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	tick := h.session.Current()
	if tick == nil {
		h.writeError(w, errNoState)
		return
	}
	h.writeJSON(w, http.StatusOK, tick)
}

func (h *Handler) getCar(w http.ResponseWriter, r *http.Request) {
	tick := h.session.Current()
	if tick == nil {
		h.writeError(w, errNoState)
		return
	}
	ca := tick.CarByNumber(r.PathValue("carNum"))
	if ca == nil {
		h.writeError(w, crewchief.ErrUnknownCar)
		return
	}
	h.writeJSON(w, http.StatusOK, ca)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.session.Status())
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	tick, err := h.session.Restart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tick)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.session.Pause()
	h.writeJSON(w, http.StatusOK, h.session.Status())
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.session.Resume()
	h.writeJSON(w, http.StatusOK, h.session.Status())
}

func (h *Handler) insight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.CarNumber == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "carNumber is required"})
		return
	}
	if h.chief == nil {
		h.writeError(w, crewchief.ErrNotConfigured)
		return
	}
	res, err := h.chief.Insight(r.Context(), req.CarNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if h.chief == nil {
		h.writeError(w, crewchief.ErrNotConfigured)
		return
	}
	res, err := h.chief.Ask(r.Context(), req.Question, req.CarNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// stream sends every processed tick as server-sent event until the client
// disconnects. The current tick is sent first.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "streaming not supported"})
		return
	}
	ch := h.session.Subscribe()
	defer h.session.CancelSubscription(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(tick *model.TickResult) error {
		data, err := json.Marshal(tick)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: tick\nid: %d\ndata: %s\n\n",
			tick.CurrentLap, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	if cur := h.session.Current(); cur != nil {
		if err := send(cur); err != nil {
			return
		}
	} else {
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			h.l.Debug("stream client gone")
			return
		case tick, ok := <-ch:
			if !ok {
				return
			}
			if err := send(tick); err != nil {
				h.l.Debug("stream write failed", log.ErrorField(err))
				return
			}
		}
	}
}

func statusFor(err error) int {
	var apiErr *llm.APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return apiErr.StatusCode
		default:
			return http.StatusBadGateway
		}
	case errors.Is(err, crewchief.ErrUnknownCar):
		return http.StatusNotFound
	case errors.Is(err, crewchief.ErrQuestionRequired):
		return http.StatusBadRequest
	case errors.Is(err, crewchief.ErrStaleLap):
		return http.StatusConflict
	case errors.Is(err, crewchief.ErrNotConfigured),
		errors.Is(err, crewchief.ErrNoState),
		errors.Is(err, errNoState):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.l.Error("request failed", log.ErrorField(err))
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.l.Warn("could not write response", log.ErrorField(err))
	}
}
