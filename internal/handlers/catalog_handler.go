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

// maxImportSize caps uploaded question workbooks at 20 MiB.
const maxImportSize = 20 << 20

type CatalogHandler struct {
	BaseHandler
	catalogService services.CatalogService
	importService  services.ImportService
	validator      *validator.Validator
}

func NewCatalogHandler(
	catalogService services.CatalogService,
	importService services.ImportService,
	validator *validator.Validator,
	logger utils.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler:    NewBaseHandler(logger),
		catalogService: catalogService,
		importService:  importService,
		validator:      validator,
	}
}

// ===== EXAMS AND SUBJECTS =====

// ListExams lists the exams visible to the caller's institution
// @Summary List exams
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Exam
// @Router /exams [get]
func (h *CatalogHandler) ListExams(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exams, err := h.catalogService.ListExams(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// UpsertExam creates or refreshes an exam and its subjects
// @Summary Upsert exam
// @Description Idempotent; re-running with the same id refreshes the exam and its subjects
// @Tags catalog
// @Accept json
// @Produce json
// @Param exam body services.UpsertExamRequest true "Exam definition"
// @Success 200 {object} models.Exam
// @Failure 403 {object} ErrorResponse
// @Router /exams [put]
func (h *CatalogHandler) UpsertExam(c *gin.Context) {
	var req services.UpsertExamRequest
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

	h.LogRequest(c, "Upserting exam", "exam_id", req.ID)

	exam, err := h.catalogService.UpsertExam(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExam retrieves one exam with its subjects
// @Summary Get exam
// @Tags catalog
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} models.Exam
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *CatalogHandler) GetExam(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exam, err := h.catalogService.GetExam(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ListSubjects lists the subjects of an exam
// @Summary List exam subjects
// @Tags catalog
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {array} models.Subject
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/subjects [get]
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	subjects, err := h.catalogService.ListSubjects(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, subjects)
}

// ===== QUESTION SETS =====

// CreateQuestionSet creates a question set
// @Summary Create question set
// @Tags catalog
// @Accept json
// @Produce json
// @Param set body services.CreateQuestionSetRequest true "Question set"
// @Success 201 {object} services.QuestionSetResponse
// @Failure 400 {object} ErrorResponse
// @Router /question-sets [post]
func (h *CatalogHandler) CreateQuestionSet(c *gin.Context) {
	h.LogRequest(c, "Creating question set")

	var req services.CreateQuestionSetRequest
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

	set, err := h.catalogService.CreateQuestionSet(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, set)
}

// GetQuestionSet retrieves a question set
// @Summary Get question set
// @Tags catalog
// @Produce json
// @Param id path uint true "Question set ID"
// @Success 200 {object} services.QuestionSetResponse
// @Failure 404 {object} ErrorResponse
// @Router /question-sets/{id} [get]
func (h *CatalogHandler) GetQuestionSet(c *gin.Context) {
	id := h.parseUintParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	set, err := h.catalogService.GetQuestionSet(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, set)
}

// UpdateQuestionSet updates a question set's name or members
// @Summary Update question set
// @Tags catalog
// @Accept json
// @Produce json
// @Param id path uint true "Question set ID"
// @Param set body services.UpdateQuestionSetRequest true "Fields to update"
// @Success 200 {object} services.QuestionSetResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /question-sets/{id} [put]
func (h *CatalogHandler) UpdateQuestionSet(c *gin.Context) {
	id := h.parseUintParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateQuestionSetRequest
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

	set, err := h.catalogService.UpdateQuestionSet(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, set)
}

// DeleteQuestionSet deletes a question set
// @Summary Delete question set
// @Tags catalog
// @Produce json
// @Param id path uint true "Question set ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /question-sets/{id} [delete]
func (h *CatalogHandler) DeleteQuestionSet(c *gin.Context) {
	id := h.parseUintParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting question set", "set_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.catalogService.DeleteQuestionSet(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question set deleted"})
}

// ListQuestionSets lists question sets
// @Summary List question sets
// @Tags catalog
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param subject_id query string false "Subject filter"
// @Success 200 {object} services.QuestionSetListResponse
// @Router /question-sets [get]
func (h *CatalogHandler) ListQuestionSets(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	sets, err := h.catalogService.ListQuestionSets(c.Request.Context(), h.parseQuestionSetFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sets)
}

// ===== QUESTIONS =====

// CreateQuestion creates one catalog question
// @Summary Create question
// @Tags catalog
// @Accept json
// @Produce json
// @Param question body services.CreateQuestionRequest true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Router /questions [post]
func (h *CatalogHandler) CreateQuestion(c *gin.Context) {
	h.LogRequest(c, "Creating question")

	var req services.CreateQuestionRequest
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

	question, err := h.catalogService.CreateQuestion(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// GetQuestion retrieves a question
// @Summary Get question
// @Tags catalog
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *CatalogHandler) GetQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	question, err := h.catalogService.GetQuestion(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// ListQuestions lists catalog questions with filters
// @Summary List questions
// @Tags catalog
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param exam query string false "Exam filter"
// @Param subject query string false "Subject filter"
// @Param chapter query string false "Chapter filter"
// @Param question_type query string false "Type filter"
// @Success 200 {object} services.QuestionListResponse
// @Router /questions [get]
func (h *CatalogHandler) ListQuestions(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	questions, err := h.catalogService.ListQuestions(c.Request.Context(), h.parseQuestionFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// ImportQuestions ingests an XLSX question workbook
// @Summary Import questions from XLSX
// @Tags catalog
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Question workbook"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} ErrorResponse
// @Router /questions/import [post]
func (h *CatalogHandler) ImportQuestions(c *gin.Context) {
	h.LogRequest(c, "Importing questions")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "File too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to open upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.importService.ImportQuestionsXLSX(c.Request.Context(), file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Helper methods

func (h *CatalogHandler) parseQuestionSetFilters(c *gin.Context) repositories.QuestionSetFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.QuestionSetFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if subjectID := c.Query("subject_id"); subjectID != "" {
		filters.SubjectID = &subjectID
	}
	if createdBy := c.Query("created_by"); createdBy != "" {
		filters.CreatedBy = &createdBy
	}

	return filters
}

func (h *CatalogHandler) parseQuestionFilters(c *gin.Context) repositories.QuestionFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.QuestionFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if exam := c.Query("exam"); exam != "" {
		filters.Exam = &exam
	}
	if subject := c.Query("subject"); subject != "" {
		filters.Subject = &subject
	}
	if chapter := c.Query("chapter"); chapter != "" {
		filters.Chapter = &chapter
	}
	if qType := c.Query("question_type"); qType != "" {
		questionType := models.QuestionType(qType)
		filters.Type = &questionType
	}

	return filters
}
