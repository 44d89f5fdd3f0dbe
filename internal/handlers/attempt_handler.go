package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/services"
	"github.com/princegupta0106/coaching-api/internal/utils"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

// AttemptHandler serves the attempt lifecycle. Attempts are addressed by
// test id; the student comes from the authenticated context, never the URL.
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts or resumes the caller's attempt on a test
// @Summary Start test attempt
// @Description Idempotent: returns the existing attempt if one exists, else creates one inside the start window
// @Tags attempts
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/attempt [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Starting test attempt", "test_id", testID)

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), testID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttempt returns the caller's attempt on a test
// @Summary Get test attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/attempt [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Getting test attempt", "test_id", testID)

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), testID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// PatchAttempt autosaves progress on the caller's in-progress attempt
// @Summary Autosave attempt progress
// @Description Partial update; each present field replaces the stored value wholesale
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param patch body services.PatchAttemptRequest true "Progress fields"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/attempt [patch]
func (h *AttemptHandler) PatchAttempt(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	var req services.PatchAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.Patch(c.Request.Context(), testID, studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAttempt submits and grades the caller's attempt
// @Summary Submit test attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param submission body services.SubmitAttemptRequest true "Final answers"
// @Success 200 {object} services.SubmitResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/attempt/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Submitting test attempt", "test_id", testID)

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), testID, studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReviewAttempt returns the stored grading outcome of a submitted attempt
// @Summary Review submitted attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.SubmitResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/attempt/review [get]
func (h *AttemptHandler) ReviewAttempt(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Reviewing test attempt", "test_id", testID)

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	result, err := h.attemptService.Review(c.Request.Context(), testID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttemptByID returns a single attempt with its parent test
// @Summary Review attempt by id
// @Description Visible to the owning student or the staff member who created the test
// @Tags attempts
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.AttemptReviewResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttemptByID(c *gin.Context) {
	attemptID := h.parseUintParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Reviewing attempt by id", "attempt_id", attemptID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	review, err := h.attemptService.ReviewByID(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// GetMyAttempts lists the caller's attempts with test summaries
// @Summary List my attempts
// @Tags attempts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Attempt status"
// @Success 200 {object} services.AttemptListResponse
// @Router /students/me/attempts [get]
func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing my attempts")

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempts, err := h.attemptService.GetByStudent(c.Request.Context(), studentID, h.parseAttemptFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// Helper methods

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.AttemptFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	return filters
}
