package handlers

import (
	"net/http"

	"taskmanager/internal/auth"
	dom "taskmanager/internal/domain"
	"taskmanager/internal/dto"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	*Responder
	svc *service.TaskService
}

func NewTaskHandler(r *Responder, svc *service.TaskService) *TaskHandler {
	return &TaskHandler{Responder: r, svc: svc}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      401   {object}  dto.Envelope
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	t, err := h.svc.Create(c.Request.Context(), id.ID, req.Input())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusCreated, dto.TaskToResponse(t, &id))
}

// List godoc
// @Summary      List the caller's tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        status   query     string  false  "pending, in-progress or completed"
// @Param        sortBy   query     string  false  "createdAt (default) or deadline"
// @Param        sortDir  query     string  false  "asc or desc (default)"
// @Success      200      {object}  dto.Envelope{data=[]dto.TaskResponse}
// @Failure      400      {object}  dto.Envelope
// @Failure      401      {object}  dto.Envelope
// @Failure      500      {object}  dto.Envelope
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), id.ID, q.Filter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, dto.TasksToResponses(list, &id))
}

// GetByID godoc
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      401  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Failure      500  {object}  dto.Envelope
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), id.ID, c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, dto.TaskToResponse(t, &id))
}

// Update godoc
// @Summary      Update a task
// @Description  Absent fields are left unchanged; null clears description or deadline.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        id    path      string                 true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      401   {object}  dto.Envelope
// @Failure      403   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Failure      500   {object}  dto.Envelope
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id.ID, c.Param("id"), req.Patch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, dto.TaskToResponse(t, &id))
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.Envelope
// @Failure      401  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Failure      500  {object}  dto.Envelope
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id.ID, c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "Task deleted successfully")
}

// identity is set by auth.Middleware; its absence means the route was wired without it.
func identity(c *gin.Context) (dom.Identity, bool) {
	id, ok := auth.IdentityFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Fail("Authentication required"))
	}
	return id, ok
}
