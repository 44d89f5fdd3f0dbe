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

type TestHandler struct {
	BaseHandler
	testService    services.TestService
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewTestHandler(
	testService services.TestService,
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *TestHandler {
	return &TestHandler{
		BaseHandler:    NewBaseHandler(logger),
		testService:    testService,
		attemptService: attemptService,
		validator:      validator,
	}
}

// CreateTest creates a test from question sets
// @Summary Create test
// @Description Creates a timed test composed from question sets
// @Tags tests
// @Accept json
// @Produce json
// @Param test body services.CreateTestRequest true "Test definition"
// @Success 201 {object} services.TestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	h.LogRequest(c, "Creating test")

	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	test, err := h.testService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

// ListTests lists tests visible to the caller
// @Summary List tests
// @Description Students see public and assigned tests; staff see their own
// @Tags tests
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} services.TestListResponse
// @Router /tests [get]
func (h *TestHandler) ListTests(c *gin.Context) {
	h.LogRequest(c, "Listing tests")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	tests, err := h.testService.List(c.Request.Context(), h.parseTestFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tests)
}

// GetTest retrieves a test definition
// @Summary Get test
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.TestResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Getting test", "test_id", testID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// GetTestQuestions returns the taking view of a test: full questions with
// answer keys stripped
// @Summary Get test questions
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.TestForAttempt
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/questions [get]
func (h *TestHandler) GetTestQuestions(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Getting test questions", "test_id", testID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	test, err := h.testService.GetForAttempt(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// GetTestAttempts lists attempts on a test for its owner
// @Summary List test attempts
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.AttemptListResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/attempts [get]
func (h *TestHandler) GetTestAttempts(c *gin.Context) {
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	h.LogRequest(c, "Listing test attempts", "test_id", testID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempts, err := h.attemptService.GetByTest(c.Request.Context(), testID, userID, h.parseAttemptFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// Helper methods

func (h *TestHandler) parseTestFilters(c *gin.Context) repositories.TestFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.TestFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if isPublic := c.Query("is_public"); isPublic != "" {
		value := isPublic == "true"
		filters.IsPublic = &value
	}

	return filters
}

func (h *TestHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
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
