// Package handlers provides the HTTP handler of the chat relay.
//
// The chat endpoint answers three ways:
//
//	OPTIONS  200, empty body, full CORS preflight headers
//	POST     200 {"response": ...} or 500 {"error": ..., "details": ...}
//	other    405 {"error":"Method not allowed"}
//
// Every POST outcome carries Access-Control-Allow-Origin. The 405 response
// does not unless CORS.OnMethodNotAllowed is set.
package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/metrics"
	"github.com/teilomillet/chatrelay/server/middleware"
	"github.com/teilomillet/chatrelay/server/processing"
	"go.uber.org/zap"
)

// CORS response headers.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
)

// ErrBodyTooLarge is the parse failure for a body over the configured cap.
var ErrBodyTooLarge = stderrors.New("request body too large")

// ChatHandler relays one conversation per POST to the completion service.
// The processor and CORS settings are held in atomic pointers so a config
// reload can swap them while requests are in flight; each request uses the
// values it loaded when it started.
type ChatHandler struct {
	processor    atomic.Pointer[processing.Processor]
	cors         atomic.Pointer[config.CORSConfig]
	maxBodyBytes atomic.Int64
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewChatHandler creates a chat handler around processor.
func NewChatHandler(processor *processing.Processor, cors config.CORSConfig, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ChatHandler{logger: logger}
	h.processor.Store(processor)
	h.cors.Store(&cors)
	return h
}

// WithMetrics enables relay failure accounting.
func (h *ChatHandler) WithMetrics(m *metrics.Metrics) *ChatHandler {
	h.metrics = m
	return h
}

// SetProcessor atomically replaces the processor used by new requests.
func (h *ChatHandler) SetProcessor(p *processing.Processor) {
	h.processor.Store(p)
}

// Processor returns the processor currently serving requests.
func (h *ChatHandler) Processor() *processing.Processor {
	return h.processor.Load()
}

// SetCORS atomically replaces the CORS settings.
func (h *ChatHandler) SetCORS(cors config.CORSConfig) {
	h.cors.Store(&cors)
}

// SetMaxBodyBytes caps the request body size; n <= 0 removes the cap.
func (h *ChatHandler) SetMaxBodyBytes(n int64) {
	h.maxBodyBytes.Store(n)
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cors := h.cors.Load()

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set(HeaderAllowOrigin, cors.AllowOrigin)
		w.Header().Set(HeaderAllowHeaders, cors.AllowHeaders)
		w.Header().Set(HeaderAllowMethods, cors.AllowMethods)
		w.WriteHeader(http.StatusOK)

	case http.MethodPost:
		h.handlePost(w, r, cors)

	default:
		if cors.OnMethodNotAllowed {
			w.Header().Set(HeaderAllowOrigin, cors.AllowOrigin)
		}
		errors.WriteError(w, errors.NewMethodNotAllowedError(middleware.GetRequestID(r.Context())))
	}
}

func (h *ChatHandler) handlePost(w http.ResponseWriter, r *http.Request, cors *config.CORSConfig) {
	requestID := middleware.GetRequestID(r.Context())
	w.Header().Set(HeaderAllowOrigin, cors.AllowOrigin)

	resp, err := h.relay(r)
	if err != nil {
		h.fail(w, errors.Wrap(errors.InternalError, err).WithRequestID(requestID))
		return
	}

	if err := errors.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Warn("failed to write response",
			zap.String(errors.RequestIDKey, requestID),
			zap.Error(err),
		)
	}
}

// relay reads and parses the body, then makes the completion call.
func (h *ChatHandler) relay(r *http.Request) (*processing.Response, error) {
	limit := h.maxBodyBytes.Load()
	body := io.Reader(r.Body)
	if limit > 0 {
		body = io.LimitReader(r.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(errors.ParseError, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errors.Wrap(errors.ParseError, ErrBodyTooLarge)
	}

	req, err := processing.ParseRequest(data)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("relaying conversation",
		zap.String(errors.RequestIDKey, middleware.GetRequestID(r.Context())),
		zap.Int("messages", len(req.Messages)),
	)

	return h.processor.Load().ProcessRequest(r.Context(), req)
}

// fail logs err and then writes the uniform 500 envelope.
func (h *ChatHandler) fail(w http.ResponseWriter, err *errors.RelayError) {
	errors.LogError(h.logger, err, err.RequestID)
	if h.metrics != nil {
		h.metrics.RelayFailures.WithLabelValues(string(err.Type)).Inc()
	}
	errors.WriteError(w, err)
}
