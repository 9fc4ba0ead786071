package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"roulette/internal/auth"
	"roulette/internal/commitment"
	"roulette/internal/events"
	"roulette/internal/gamehub"
	"roulette/internal/metrics"
	"roulette/internal/models"
	"roulette/internal/services"
	"roulette/internal/storage"
)

// HTTPHandler exposes a DrawService over JSON.
type HTTPHandler struct {
	service *services.DrawService
	tokens  *auth.TokenIssuer
	hub     *events.Hub
}

// NewHTTPHandler creates a new HTTPHandler. tokens and hub may be nil, in
// which case callers stay anonymous and /events/ws is not served.
func NewHTTPHandler(service *services.DrawService, tokens *auth.TokenIssuer, hub *events.Hub) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		tokens:  tokens,
		hub:     hub,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if h.hub != nil {
		router.GET("/events/ws", h.StreamEvents)
	}

	router.POST("/initialize", h.Initialize)
	router.POST("/sessions", h.CommitDraw)

	s := router.Group("/sessions/:id")
	s.GET("", h.GetSession)
	s.GET("/participants", h.GetParticipants)
	s.GET("/count", h.ParticipantCount)
	s.GET("/audit", h.Audit)
	s.POST("/participants", h.RegisterParticipant)
	s.POST("/close", h.CloseRegistrations)
	s.POST("/reveal", h.RevealWinner)
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// errorCodes maps each service error to its HTTP status and stable code.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{services.ErrNotInitialized, http.StatusServiceUnavailable, "not_initialized"},
	{services.ErrSessionAlreadyExists, http.StatusConflict, "session_already_exists"},
	{services.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{services.ErrRegistrationClosed, http.StatusConflict, "registration_closed"},
	{services.ErrMaxParticipantsReached, http.StatusConflict, "max_participants_reached"},
	{services.ErrDuplicateParticipant, http.StatusConflict, "duplicate_participant"},
	{services.ErrNotOrganizer, http.StatusForbidden, "not_organizer"},
	{services.ErrSessionNotOpen, http.StatusConflict, "session_not_open"},
	{services.ErrInsufficientParticipants, http.StatusConflict, "insufficient_participants"},
	{services.ErrSessionNotClosed, http.StatusConflict, "session_not_closed"},
	{services.ErrInvalidSecret, http.StatusBadRequest, "invalid_secret"},
	{services.ErrInvalidCommitment, http.StatusBadRequest, "invalid_commitment"},
	{services.ErrCommitmentMismatch, http.StatusUnprocessableEntity, "commitment_mismatch"},
	{commitment.ErrNoParticipants, http.StatusConflict, "no_participants"},
	{auth.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{gamehub.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{storage.ErrConflict, http.StatusConflict, "conflict"},
}

// fail writes err as JSON. Anything unknown is treated as a failure of a
// collaborator such as storage or the game hub.
func fail(c *gin.Context, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			c.AbortWithStatusJSON(ec.status, errorBody{Code: ec.code, Error: err.Error()})
			return
		}
	}

	logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusBadGateway, errorBody{Code: "upstream", Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: "bad_request", Error: err.Error()})
}

func sessionID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, errors.New("session id must be an unsigned 32-bit integer"))
		return 0, false
	}
	return uint32(id), true
}

type initializeRequest struct {
	ServiceAddress string `json:"serviceAddress" binding:"required"`
}

// Initialize handles the one-time setup of the game hub address.
func (h *HTTPHandler) Initialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.Initialize(c.Request.Context(), req.ServiceAddress); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type commitRequest struct {
	Organizer  models.Identity `json:"organizer" binding:"required"`
	SessionID  uint32          `json:"sessionId"`
	Commitment models.Digest   `json:"commitment"`
}

// CommitDraw handles the creation of a session bound to a commitment.
func (h *HTTPHandler) CommitDraw(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.CommitDraw(c.Request.Context(), req.Organizer, req.SessionID, req.Commitment); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": req.SessionID, "commitment": req.Commitment})
}

type registerRequest struct {
	Participant models.Identity `json:"participant" binding:"required"`
}

// RegisterParticipant handles a participant entering an open session.
func (h *HTTPHandler) RegisterParticipant(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	count, err := h.service.RegisterParticipant(c.Request.Context(), id, req.Participant)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "count": count})
}

// CloseRegistrations handles the organizer freezing the participant list.
func (h *HTTPHandler) CloseRegistrations(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	count, err := h.service.CloseRegistrations(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "count": count})
}

type revealRequest struct {
	Secret uint64      `json:"secret,string"`
	Salt   models.Salt `json:"salt"`
}

// RevealWinner handles the organizer opening its commitment.
func (h *HTTPHandler) RevealWinner(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.service.RevealWinner(c.Request.Context(), id, req.Secret, req.Salt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetSession returns the session record.
func (h *HTTPHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetParticipants returns the participant list in registration order.
func (h *HTTPHandler) GetParticipants(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	list, err := h.service.GetParticipants(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ParticipantCount returns the number of registered participants.
func (h *HTTPHandler) ParticipantCount(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	count, err := h.service.ParticipantCount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "count": count})
}

// Audit recomputes a draw from the secret and salt in the query string.
func (h *HTTPHandler) Audit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	secret, err := strconv.ParseUint(c.Query("secret"), 10, 64)
	if err != nil {
		badRequest(c, errors.New("secret must be an unsigned 64-bit integer"))
		return
	}
	salt, err := models.ParseSalt(c.Query("salt"))
	if err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.service.Audit(c.Request.Context(), id, secret, salt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
