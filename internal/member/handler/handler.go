// Package handler provides HTTP handlers for member endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/datajpa/internal/member/model"
	"github.com/festy23/datajpa/internal/member/service"
	"github.com/festy23/datajpa/internal/pagination"
	"github.com/festy23/datajpa/pkg/repository"
)

// DefaultPageSize is the page size of the member listing when none is requested.
const DefaultPageSize = 12

// Handler handles HTTP requests for member endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
	pages   pagination.Defaults
}

// New creates a new member handler instance. The listing defaults to pages of
// DefaultPageSize sorted by username descending.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		pages:   pagination.New(DefaultPageSize, repository.Desc("username")),
	}
}

// FindMember handles GET /members/:id and responds with the username as plain text.
func (h *Handler) FindMember(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}

	username, err := h.service.FindUsername(c.Request.Context(), id)
	if err != nil {
		h.memberError(c, id, err)
		return
	}

	c.String(http.StatusOK, username)
}

// FindMemberResolved handles GET /members2/:id. The member is resolved from
// the path before the handler body uses it.
func (h *Handler) FindMemberResolved(c *gin.Context) {
	member, ok := h.resolveMember(c)
	if !ok {
		return
	}

	c.String(http.StatusOK, member.Username)
}

// List handles GET /members?page=&size=&sort= and responds with a page of member views.
func (h *Handler) List(c *gin.Context) {
	pageable := h.pages.Bind(c)

	page, err := h.service.ListMembers(c.Request.Context(), pageable)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownProperty) || errors.Is(err, repository.ErrInvalidPageable) {
			invalidRequestResponse(c, err.Error())
			return
		}
		h.logger.Errorw("error listing members", "error", err)
		internalErrorResponse(c)
		return
	}

	c.JSON(http.StatusOK, page)
}

// resolveMember loads the member named by the :id path parameter. On failure
// it writes the error response and returns false.
func (h *Handler) resolveMember(c *gin.Context) (*model.Member, bool) {
	id, ok := memberID(c)
	if !ok {
		return nil, false
	}

	member, err := h.service.GetMember(c.Request.Context(), id)
	if err != nil {
		h.memberError(c, id, err)
		return nil, false
	}
	return member, true
}

func (h *Handler) memberError(c *gin.Context, id uint, err error) {
	switch {
	case errors.Is(err, model.ErrMemberNotFound):
		notFoundResponse(c, "member not found")
	case errors.Is(err, model.ErrInvalidMemberID):
		invalidRequestResponse(c, "id must be a positive integer")
	default:
		h.logger.Errorw("error finding member", "member_id", id, "error", err)
		internalErrorResponse(c)
	}
}

func memberID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		invalidRequestResponse(c, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
