package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/service"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// TodoHandler exposes the caller's personal task list.
type TodoHandler struct {
	todos *service.TodoService
}

// NewTodoHandler constructs TodoHandler.
func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

// List godoc
// @Summary List own todos
// @Tags Todos
// @Produce json
// @Param include_done query bool false "Include completed tasks"
// @Success 200 {object} response.Envelope
// @Router /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	includeDone := c.Query("include_done") == "true"
	todos, err := h.todos.List(c.Request.Context(), claims.UserID, includeDone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todos, nil)
}

// Create godoc
// @Summary Add a todo
// @Tags Todos
// @Accept json
// @Produce json
// @Param payload body service.CreateTodoRequest true "Todo payload"
// @Success 201 {object} response.Envelope
// @Router /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	todo, err := h.todos.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, todo)
}

// SetDone godoc
// @Summary Flip a todo's completion flag
// @Tags Todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param payload body map[string]bool true "Done flag"
// @Success 204 {object} response.Envelope
// @Router /todos/{id}/done [put]
func (h *TodoHandler) SetDone(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload struct {
		Done bool `json:"done"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.todos.SetDone(c.Request.Context(), claims.UserID, c.Param("id"), payload.Done); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a todo
// @Tags Todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 204 {object} response.Envelope
// @Router /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.todos.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
