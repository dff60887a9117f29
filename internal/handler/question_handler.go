package handler

import (
	"net/http"
	"strconv"

	"github.com/aasprep/practest-backend/internal/response"
	"github.com/aasprep/practest-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// QuestionHandler handles the outward-facing question listing.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/v1/questions?subject=Mathematics&limit=20
// Returns a random sample of questions with the answer key stripped.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	subject := c.Query("subject")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	questions, err := h.questionService.List(c.Request.Context(), subject, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
