package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/RobertMJr/my-blog/internal/store"
)

// Publisher receives the name of every article that was served.
type Publisher interface {
	Push(ctx context.Context, name string) error
}

type articleHandler struct {
	scope     store.Scope
	articles  *store.Articles
	publisher Publisher

	publishTimeout time.Duration
}

func (h *articleHandler) get(c *gin.Context) {
	name := c.Param("name")

	var article bson.M
	err := h.scope.WithDB(c.Request.Context(), func(ctx context.Context, db *mongo.Database) error {
		var err error
		article, err = h.articles.FindDocument(ctx, db, name)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		dbError(c, err)
		return
	}

	h.publishView(c, name)
	c.JSON(http.StatusOK, article)
}

func (h *articleHandler) upvote(c *gin.Context) {
	name := c.Param("name")
	h.update(c, func(ctx context.Context, db *mongo.Database) (*store.Article, error) {
		return h.articles.Upvote(ctx, db, name)
	})
}

func (h *articleHandler) addComment(c *gin.Context) {
	name := c.Param("name")

	// the body is taken as-is; anything that does not decode is an empty comment
	var comment store.Comment
	if err := c.ShouldBindJSON(&comment); err != nil {
		log.Debug().Err(err).Str("article", name).Msg("unreadable comment body")
		comment = store.Comment{}
	}

	h.update(c, func(ctx context.Context, db *mongo.Database) (*store.Article, error) {
		return h.articles.AddComment(ctx, db, name, comment)
	})
}

func (h *articleHandler) update(c *gin.Context, op func(context.Context, *mongo.Database) (*store.Article, error)) {
	var article *store.Article
	err := h.scope.WithDB(c.Request.Context(), func(ctx context.Context, db *mongo.Database) error {
		var err error
		article, err = op(ctx, db)
		return err
	})
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *articleHandler) publishView(c *gin.Context, name string) {
	if h.publisher == nil {
		return
	}
	ctx := c.Request.Context()
	if h.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.publishTimeout)
		defer cancel()
	}
	if err := h.publisher.Push(ctx, name); err != nil {
		log.Error().Err(err).Str("article", name).Msg("error occured while publishing to redis")
	}
}
