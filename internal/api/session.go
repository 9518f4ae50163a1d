package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/httputil"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/session"
)

// SessionHandler reads and edits the session mirror.
type SessionHandler struct {
	session SessionStore
	log     *logrus.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(s SessionStore, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{session: s, log: log}
}

// Get handles GET /api/v1/session.
func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Load())
}

// sessionUpdate carries the fields a PUT may change; absent fields are kept.
type sessionUpdate struct {
	LocationID *model.ID     `json:"locationId"`
	Date       *string       `json:"date"`
	User       *session.User `json:"user"`
}

// Update handles PUT /api/v1/session, applying every given field in one
// mirror update so handlers never observe a half-applied change.
func (h *SessionHandler) Update(c *gin.Context) {
	var req sessionUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "invalid JSON body")
		return
	}

	if req.LocationID != nil && *req.LocationID == "" {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "locationId must not be empty")
		return
	}

	if req.Date != nil {
		if _, err := time.Parse(session.DateLayout, *req.Date); err != nil {
			httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	if req.User != nil && req.User.ID == "" {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "user._id is required")
		return
	}

	h.session.Update(func(s *session.Snapshot) {
		if req.LocationID != nil {
			s.LocationID = *req.LocationID
		}
		if req.Date != nil {
			s.Date = *req.Date
		}
		if req.User != nil {
			s.User = *req.User
		}
	})

	snap := h.session.Load()
	h.log.WithFields(logrus.Fields{
		"location": snap.LocationID,
		"date":     snap.Date,
		"user":     snap.User.ID,
	}).Info("session updated from ops api")

	c.JSON(http.StatusOK, snap)
}
