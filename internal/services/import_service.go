package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
)

// Workbook column headers recognized by the question importer.
const (
	colID          = "id"
	colType        = "question_type"
	colExam        = "exam"
	colSubject     = "subject"
	colChapter     = "chapter"
	colQuestion    = "question_html"
	colAnswer      = "answer"
	colExplanation = "explanation_html"
)

// Option columns: option_a .. option_f map to labels A..F.
var optionLabels = []string{"A", "B", "C", "D", "E", "F"}

type importService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewImportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ImportService {
	return &importService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ImportQuestionsXLSX reads the first sheet of a question workbook and
// upserts one question per row. Rows missing an id or question body are
// skipped and reported, not fatal.
func (s *importService) ImportQuestionsXLSX(ctx context.Context, r io.Reader, creatorID string) (*ImportResult, error) {
	creator, err := s.repo.User().GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if creator.Role != models.RoleStaff && creator.Role != models.RoleAdmin {
		return nil, NewPermissionError(creatorID, nil, "question", "import", "requires staff role")
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewBusinessRuleError("invalid_workbook", fmt.Sprintf("failed to open workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewBusinessRuleError("invalid_workbook", "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, NewBusinessRuleError("empty_workbook", "workbook has no data rows")
	}

	columns := indexColumns(rows[0])
	if _, ok := columns[colID]; !ok {
		return nil, NewBusinessRuleError("invalid_workbook", "missing required column: id")
	}

	result := &ImportResult{}
	var questions []*models.Question

	var institutionsJSON []byte
	if creator.Institution != "" {
		institutionsJSON, _ = json.Marshal([]string{creator.Institution})
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		question, err := s.parseRow(row, columns, creatorID, institutionsJSON)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) > 0 {
		if err := s.repo.Question().CreateBatch(ctx, s.db, questions); err != nil {
			return nil, fmt.Errorf("failed to import questions: %w", err)
		}
	}
	result.Imported = len(questions)

	s.logger.Info("Question import finished",
		"creator_id", creatorID,
		"imported", result.Imported,
		"skipped", result.Skipped)

	return result, nil
}

func (s *importService) parseRow(row []string, columns map[string]int, creatorID string, institutionsJSON []byte) (*models.Question, error) {
	id := cell(row, columns, colID)
	if id == "" {
		return nil, fmt.Errorf("missing id")
	}

	questionHTML := cell(row, columns, colQuestion)
	if questionHTML == "" {
		return nil, fmt.Errorf("missing question_html")
	}

	qType := models.QuestionType(strings.ToLower(cell(row, columns, colType)))
	switch qType {
	case models.MCQSingle, models.MCQMultiple, models.Numerical, models.OtherType:
	case "":
		qType = models.MCQSingle
	default:
		return nil, fmt.Errorf("unknown question_type %q", qType)
	}

	content := models.QuestionContent{
		QuestionHTML:    questionHTML,
		ExplanationHTML: cell(row, columns, colExplanation),
	}
	for _, label := range optionLabels {
		html := cell(row, columns, "option_"+strings.ToLower(label))
		if html != "" {
			content.Options = append(content.Options, models.Option{Label: label, HTML: html})
		}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}

	var answerJSON []byte
	if answer := cell(row, columns, colAnswer); answer != "" {
		answerJSON, err = json.Marshal(models.QuestionAnswer{Type: qType, Value: &answer})
		if err != nil {
			return nil, fmt.Errorf("failed to encode answer: %w", err)
		}
	}

	return &models.Question{
		ID:           id,
		Type:         qType,
		Exam:         cell(row, columns, colExam),
		Subject:      cell(row, columns, colSubject),
		Chapter:      cell(row, columns, colChapter),
		Content:      contentJSON,
		Answer:       answerJSON,
		Institutions: institutionsJSON,
		CreatedBy:    creatorID,
	}, nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			columns[name] = i
		}
	}
	return columns
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
