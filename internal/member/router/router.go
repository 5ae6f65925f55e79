// Package router provides member module routes registration.
package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/member/handler"
	"github.com/festy23/datajpa/internal/member/repository"
	"github.com/festy23/datajpa/internal/member/service"
)

// NewService wires the member repository into a member service.
func NewService(db *gorm.DB, logger *zap.SugaredLogger) (service.Service, error) {
	repo, err := repository.NewMemberRepository(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create member repository: %w", err)
	}
	return service.New(repo, logger), nil
}

// RegisterRoutes registers member module routes.
func RegisterRoutes(r gin.IRouter, svc service.Service, logger *zap.SugaredLogger) {
	h := handler.New(svc, logger)

	r.GET("/members/:id", h.FindMember)
	r.GET("/members2/:id", h.FindMemberResolved)
	r.GET("/members", h.List)
}
