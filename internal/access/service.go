// Package access serves the read side: feature access checks against the
// user state store and administrative visibility into the tripwires.
// Checks are point-in-time reads of already-applied state; they never
// trigger rule evaluation.
package access

import (
	"github.com/fenceline-lab/fenceline/internal/tripwire"
	"github.com/fenceline-lab/fenceline/internal/userstate"
	"github.com/gin-gonic/gin"
)

type Service struct {
	users     userstate.Store
	tripwires *tripwire.Manager
}

func NewService(users userstate.Store, tripwires *tripwire.Manager) *Service {
	if users == nil {
		panic("access: user store must not be nil")
	}
	if tripwires == nil {
		panic("access: tripwire manager must not be nil")
	}
	return &Service{users: users, tripwires: tripwires}
}

// RegisterRoutes registers the access and tripwire admin routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/users/:user_id/access/:flag", s.CheckAccessHandler)
	r.GET("/v1/users/:user_id", s.GetUserHandler)
	r.GET("/v1/tripwires", s.ListTripwiresHandler)
	r.POST("/v1/tripwires/:rule_name/reset", s.ResetTripwireHandler)
}
