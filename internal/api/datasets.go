package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initDatasetRoutes() {
	c.Group.GET("/datasets", c.ListDatasets)
	c.Group.POST("/datasets", c.ImportDataset)
	c.Group.GET("/datasets/:id", c.GetDataset)
	c.Group.DELETE("/datasets/:id", c.DeleteDataset)

	c.Group.GET("/datasets/:id/items", c.DatasetItems)
	c.Group.GET("/datasets/:id/annotators", c.DatasetRoster)
	c.Group.PUT("/datasets/:id/assignments", c.AssignAnnotators)
	c.Group.DELETE("/datasets/:id/assignments/:annotatorId", c.UnassignAnnotator)
	c.Group.GET("/datasets/:id/annotators/unassigned", c.UnassignedAnnotators)
	c.Group.GET("/datasets/:id/completion", c.DatasetCompletion)
}

// DatasetItems returns the full annotation state of every item in the
// dataset, in stored order.
func (c *Controller) DatasetItems(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	states, err := c.annotations.DatasetItemStates(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, states)
}

// DatasetRoster lists the dataset's current assignees.
func (c *Controller) DatasetRoster(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if _, err := c.DS.GetDataset(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	links, err := c.DS.GetDatasetAnnotators(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	type entry struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	out := make([]entry, 0, len(links))
	for _, link := range links {
		annotator, err := c.DS.GetAnnotator(ctx.Request().Context(), link.AnnotatorID)
		if err != nil {
			return c.HandleError(ctx, err)
		}
		out = append(out, entry{ID: annotator.ID, Name: annotator.Name, Email: annotator.Email})
	}
	return ctx.JSON(http.StatusOK, out)
}

// ListDatasets returns a summary of every dataset.
func (c *Controller) ListDatasets(ctx echo.Context) error {
	summaries, err := c.datasets.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, summaries)
}

// importRequest is the JSON body of a dataset import. Rows carries the
// raw TSV content.
type importRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Classes     []string `json:"classes"`
	Rows        string   `json:"rows"`
}

// ImportDataset creates a dataset either from a multipart upload
// (fields name, description, classes and a "file" part) or from a JSON
// body carrying the rows inline.
func (c *Controller) ImportDataset(ctx echo.Context) error {
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return c.importFromMultipart(ctx)
	}

	var req importRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	result, err := c.datasets.ImportTSV(ctx.Request().Context(),
		req.Name, req.Description, req.Classes, strings.NewReader(req.Rows))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, result)
}

func (c *Controller) importFromMultipart(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, bindError(err))
	}
	src, err := file.Open()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	defer src.Close()

	name := ctx.FormValue("name")
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(file.Filename, ".tsv")
	}
	var classes []string
	if raw := ctx.FormValue("classes"); raw != "" {
		classes = strings.Split(raw, ";")
	}

	result, err := c.datasets.ImportTSV(ctx.Request().Context(),
		name, ctx.FormValue("description"), classes, src)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, result)
}

// GetDataset returns the full read model of one dataset.
func (c *Controller) GetDataset(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	details, err := c.datasets.Details(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, details)
}

// DeleteDataset removes a dataset with all derived state.
func (c *Controller) DeleteDataset(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.datasets.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

type assignRequest struct {
	AnnotatorIDs []uint `json:"annotatorIds"`
}

// AssignAnnotators redistributes the whole dataset across the given
// annotators and returns the refreshed read model.
func (c *Controller) AssignAnnotators(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req assignRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	if err := c.assignments.Assign(ctx.Request().Context(), id, req.AnnotatorIDs); err != nil {
		return c.HandleError(ctx, err)
	}
	c.datasets.InvalidateCache()

	details, err := c.datasets.Details(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, details)
}

// UnassignAnnotator removes one annotator from the dataset without
// redistributing their items.
func (c *Controller) UnassignAnnotator(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	annotatorID, err := idParam(ctx, "annotatorId")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.assignments.Unassign(ctx.Request().Context(), id, annotatorID); err != nil {
		return c.HandleError(ctx, err)
	}
	c.datasets.InvalidateCache()
	return ctx.NoContent(http.StatusNoContent)
}

// UnassignedAnnotators lists active annotators absent from the
// dataset's roster.
func (c *Controller) UnassignedAnnotators(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	annotators, err := c.datasets.UnassignedAnnotators(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	type entry struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	out := make([]entry, 0, len(annotators))
	for _, a := range annotators {
		out = append(out, entry{ID: a.ID, Name: a.Name, Email: a.Email})
	}
	return ctx.JSON(http.StatusOK, out)
}

// DatasetCompletion returns the dataset's completion percentage.
func (c *Controller) DatasetCompletion(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if _, err := c.DS.GetDataset(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	percent, err := c.annotations.DatasetCompletion(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"datasetId":         id,
		"completionPercent": percent,
	})
}
