package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/RobertMJr/my-blog/internal/analytics"
	"github.com/RobertMJr/my-blog/internal/store"
)

type viewHandler struct {
	scope store.Scope
	views *analytics.Views
}

func (h *viewHandler) get(c *gin.Context) {
	name := c.Param("name")

	var view *analytics.View
	err := h.scope.WithDB(c.Request.Context(), func(ctx context.Context, db *mongo.Database) error {
		var err error
		view, err = h.views.Get(ctx, db, name)
		return err
	})
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *viewHandler) list(c *gin.Context) {
	var views []analytics.View
	err := h.scope.WithDB(c.Request.Context(), func(ctx context.Context, db *mongo.Database) error {
		var err error
		views, err = h.views.List(ctx, db)
		return err
	})
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
