package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/princegupta0106/coaching-api/internal/config"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/services"
	"github.com/princegupta0106/coaching-api/internal/utils"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

type HandlerManager struct {
	testHandler    *TestHandler
	attemptHandler *AttemptHandler
	catalogHandler *CatalogHandler
	userHandler    *UserHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		testHandler:    NewTestHandler(serviceManager.Test(), serviceManager.Attempt(), validator, logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		catalogHandler: NewCatalogHandler(serviceManager.Catalog(), serviceManager.Import(), validator, logger),
		userHandler:    NewUserHandler(serviceManager.User(), logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware()) // Apply authentication to all API routes
	{
		// Test routes
		tests := v1.Group("/tests")
		{
			// Create tests - Staff and Admins only
			tests.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin), hm.testHandler.CreateTest)

			// View tests - All authenticated users (visibility filtered per role)
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.GET("/:id/questions", hm.testHandler.GetTestQuestions)

			// Attempt roster - Staff and Admins only
			tests.GET("/:id/attempts", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin), hm.testHandler.GetTestAttempts)

			// The caller's own attempt on a test
			tests.POST("/:id/attempt", hm.attemptHandler.StartAttempt)
			tests.GET("/:id/attempt", hm.attemptHandler.GetAttempt)
			tests.PATCH("/:id/attempt", hm.attemptHandler.PatchAttempt)
			tests.POST("/:id/attempt/submit", hm.attemptHandler.SubmitAttempt)
			tests.GET("/:id/attempt/review", hm.attemptHandler.ReviewAttempt)
		}

		// Direct attempt lookup - object-level authorization in the service
		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttemptByID)
		}

		// Exam catalog routes - All authenticated users
		exams := v1.Group("/exams")
		{
			exams.GET("", hm.catalogHandler.ListExams)
			exams.PUT("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.catalogHandler.UpsertExam)
			exams.GET("/:id", hm.catalogHandler.GetExam)
			exams.GET("/:id/subjects", hm.catalogHandler.ListSubjects)
		}

		// Question set routes - Staff and Admins only
		questionSets := v1.Group("/question-sets")
		questionSets.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin))
		{
			questionSets.POST("", hm.catalogHandler.CreateQuestionSet)
			questionSets.GET("", hm.catalogHandler.ListQuestionSets)
			questionSets.GET("/:id", hm.catalogHandler.GetQuestionSet)
			questionSets.PUT("/:id", hm.catalogHandler.UpdateQuestionSet)
			questionSets.DELETE("/:id", hm.catalogHandler.DeleteQuestionSet)
		}

		// Question routes - Staff and Admins only
		questions := v1.Group("/questions")
		questions.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin))
		{
			questions.POST("", hm.catalogHandler.CreateQuestion)
			questions.GET("", hm.catalogHandler.ListQuestions)
			questions.GET("/:id", hm.catalogHandler.GetQuestion)
			questions.POST("/import", hm.catalogHandler.ImportQuestions)
		}

		// Student routes
		students := v1.Group("/students")
		students.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent))
		{
			students.GET("/me/attempts", hm.attemptHandler.GetMyAttempts)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin), hm.userHandler.ListUsers)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "coaching-api",
		})
	})
}
