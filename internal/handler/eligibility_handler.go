package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type eligibilityResolver interface {
	Resolve(ctx context.Context, studentID string, purpose dto.EligibilityPurpose) (*dto.Eligibility, error)
}

// EligibilityHandler answers the check-eligibility endpoints.
type EligibilityHandler struct {
	service eligibilityResolver
}

// NewEligibilityHandler constructs the handler.
func NewEligibilityHandler(svc eligibilityResolver) *EligibilityHandler {
	return &EligibilityHandler{service: svc}
}

// Check returns a handler bound to one purpose.
//
// @Summary Check submission eligibility
// @Description Resolves whether the caller may submit school info, mentor info or evaluations right now
// @Tags Eligibility
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /school-info/check-eligibility [get]
// @Router /mentor-info/check-eligibility [get]
// @Router /evaluation/check-eligibility [get]
func (h *EligibilityHandler) Check(purpose dto.EligibilityPurpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionFromContext(c)
		if !ok {
			return
		}
		result, err := h.service.Resolve(c.Request.Context(), session.UserID, purpose)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
	}
}
