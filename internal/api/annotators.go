package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initAnnotatorRoutes() {
	c.Group.POST("/annotators", c.RegisterAnnotator)
	c.Group.GET("/annotators", c.ListAnnotators)
	c.Group.GET("/annotators/:id", c.GetAnnotator)
	c.Group.DELETE("/annotators/:id", c.DeactivateAnnotator)
	c.Group.GET("/annotators/:id/tasks", c.AnnotatorTasks)
	c.Group.GET("/annotators/:id/workload", c.AnnotatorWorkload)

	c.Group.POST("/auth/login", c.Login)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterAnnotator creates a new annotator account.
func (c *Controller) RegisterAnnotator(ctx echo.Context) error {
	var req registerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	profile, err := c.annotators.Register(ctx.Request().Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, profile)
}

// ListAnnotators lists all active annotators.
func (c *Controller) ListAnnotators(ctx echo.Context) error {
	profiles, err := c.annotators.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, profiles)
}

// GetAnnotator returns one annotator's profile.
func (c *Controller) GetAnnotator(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	profile, err := c.annotators.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, profile)
}

// DeactivateAnnotator soft-deletes an annotator account.
func (c *Controller) DeactivateAnnotator(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.annotators.Deactivate(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AnnotatorTasks returns an annotator's work queue across datasets.
func (c *Controller) AnnotatorTasks(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	tasks, err := c.annotations.TasksFor(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// AnnotatorWorkload returns assigned/completed counts, scoped to one
// dataset via the datasetId query parameter or global without it.
func (c *Controller) AnnotatorWorkload(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	datasetID, err := uintQuery(ctx, "datasetId", 0)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	load, err := c.datasets.Workload(ctx.Request().Context(), id, datasetID)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, load)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns the matching profile.
func (c *Controller) Login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	profile, err := c.annotators.Authenticate(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		resp := &ErrorResponse{
			Error:         "invalid email or password",
			Code:          http.StatusUnauthorized,
			CorrelationID: generateCorrelationID(),
		}
		return ctx.JSON(http.StatusUnauthorized, resp)
	}
	return ctx.JSON(http.StatusOK, profile)
}
