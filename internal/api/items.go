package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initItemRoutes() {
	c.Group.GET("/items/incomplete", c.IncompleteItems)
	c.Group.GET("/items/:id", c.GetItem)
	c.Group.GET("/items/:id/annotations", c.ItemLedger)
	c.Group.POST("/items/:id/annotations", c.SubmitAnnotation)
	c.Group.POST("/items/:id/annotators", c.AddItemAnnotator)
}

// IncompleteItems lists items with fewer assigned annotators than the
// threshold query parameter, defaulting to the configured threshold.
func (c *Controller) IncompleteItems(ctx echo.Context) error {
	threshold, err := uintQuery(ctx, "threshold", uint(c.Settings.Annotation.DefaultThreshold))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	items, err := c.datasets.IncompleteItems(ctx.Request().Context(), int(threshold))
	if err != nil {
		return c.HandleError(ctx, err)
	}

	type entry struct {
		ID        uint   `json:"id"`
		DatasetID uint   `json:"datasetId"`
		Text1     string `json:"text1"`
		Text2     string `json:"text2"`
	}
	out := make([]entry, 0, len(items))
	for _, item := range items {
		out = append(out, entry{ID: item.ID, DatasetID: item.DatasetID, Text1: item.Text1, Text2: item.Text2})
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetItem returns the full annotation state of one item.
func (c *Controller) GetItem(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	state, err := c.annotations.ItemState(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, state)
}

// ItemLedger returns an item's annotations in submission order.
func (c *Controller) ItemLedger(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	ledger, err := c.annotations.LedgerFor(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ledger)
}

type submitRequest struct {
	AnnotatorID uint   `json:"annotatorId"`
	Value       string `json:"value"`
}

// SubmitAnnotation records an annotation for the item and returns the
// item's refreshed state.
func (c *Controller) SubmitAnnotation(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req submitRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	state, err := c.annotations.Submit(ctx.Request().Context(), id, req.AnnotatorID, req.Value)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.datasets.InvalidateCache()
	return ctx.JSON(http.StatusCreated, state)
}

type addAnnotatorRequest struct {
	AnnotatorID uint `json:"annotatorId"`
}

// AddItemAnnotator assigns one extra annotator to a single item. The
// annotator must already be on the dataset's roster.
func (c *Controller) AddItemAnnotator(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req addAnnotatorRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, bindError(err))
	}

	if err := c.assignments.AddAnnotatorToItem(ctx.Request().Context(), id, req.AnnotatorID); err != nil {
		return c.HandleError(ctx, err)
	}
	state, err := c.annotations.ItemState(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, state)
}
