package access

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	httperr "github.com/fenceline-lab/fenceline/internal/core/errors"
	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/fenceline-lab/fenceline/internal/userstate"
	"github.com/gin-gonic/gin"
)

const msgStoreUnavailable = "User state store temporarily unavailable"

// CheckAccessHandler answers "may this user use this feature right now".
// Unknown users and unknown flags are allowed: restrictions are opt-out,
// recorded only when a rule has cleared a flag. A store outage is a 503,
// never a default-allowed answer.
func (s *Service) CheckAccessHandler(c *gin.Context) {
	userID := c.Param("user_id")
	flag := c.Param("flag")

	state, err := s.users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, userstate.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"user_id": userID,
				"flag":    flag,
				"allowed": true,
			})
			return
		}
		writeStoreError(c, "access check", userID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"flag":    flag,
		"allowed": state.FlagAllowed(flag),
	})
}

// GetUserHandler returns the user's full restriction record. Unknown
// users get the default-allowed view without persisting anything.
func (s *Service) GetUserHandler(c *gin.Context) {
	userID := c.Param("user_id")

	state, err := s.users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, userstate.ErrNotFound) {
			c.JSON(http.StatusOK, userstate.New(userID))
			return
		}
		writeStoreError(c, "user lookup", userID, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ListTripwiresHandler reports every configured rule's breaker state.
func (s *Service) ListTripwiresHandler(c *gin.Context) {
	states, err := s.tripwires.Snapshot(c.Request.Context())
	if err != nil {
		slog.Error("Failed to snapshot tripwires", "error", err)
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailable,
			Message:   "Tripwire store temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tripwires": states})
}

// ResetTripwireHandler administratively re-enables a tripped rule.
func (s *Service) ResetTripwireHandler(c *gin.Context) {
	rule := c.Param("rule_name")

	if !s.tripwires.Known(rule) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownRuleError,
			Message:   "Unknown rule: " + rule,
		})
		return
	}

	if err := s.tripwires.Reset(c.Request.Context(), rule); err != nil {
		slog.Error("Failed to reset tripwire", "rule", rule, "error", err)
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailable,
			Message:   "Tripwire store temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rule":     rule,
		"enabled":  true,
		"reset_at": time.Now().UTC(),
	})
}

func writeStoreError(c *gin.Context, op, userID string, err error) {
	if errors.Is(err, storage.ErrUnavailable) {
		slog.Error("User store unavailable", "op", op, "user_id", userID, "error", err)
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailable,
			Message:   msgStoreUnavailable,
		})
		return
	}

	slog.Error("User store read failed", "op", op, "user_id", userID, "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Failed to read user state",
	})
}
