package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/RobertMJr/my-blog/internal/analytics"
	"github.com/RobertMJr/my-blog/internal/config"
	"github.com/RobertMJr/my-blog/internal/store"
)

const (
	ns        = "my-blog.articles"
	indexHTML = "<!doctype html><div id=\"root\"></div>"
)

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (p *recordingPublisher) Push(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, name)
	return p.err
}

// stalledPublisher blocks until the caller gives up, like a push to an
// unreachable redis.
type stalledPublisher struct {
	hadDeadline bool
}

func (p *stalledPublisher) Push(ctx context.Context, _ string) error {
	_, p.hadDeadline = ctx.Deadline()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return errors.New("push never gave up")
	}
}

type unreachableScope struct{}

func (unreachableScope) WithDB(context.Context, store.Operation) error {
	return errors.New("server selection error: context deadline exceeded")
}

func (unreachableScope) Close(context.Context) error { return nil }

func testConfig(t testing.TB) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static", "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "js", "main.js"), []byte("console.log(1)"), 0o600))

	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.StaticDir = dir
	return cfg
}

func articleDoc(name string, upvotes int, comments ...store.Comment) bson.D {
	list := bson.A{}
	for _, c := range comments {
		list = append(list, bson.D{{Key: "username", Value: c.Username}, {Key: "text", Value: c.Text}})
	}
	return bson.D{{Key: "name", Value: name}, {Key: "upvotes", Value: upvotes}, {Key: "comments", Value: list}}
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func TestArticleRoutes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	newBlog := func(mt *mtest.T, atomic bool, pub Publisher) *Server {
		return NewBlog(testConfig(mt), store.NewPooled(mt.Client, "my-blog"), store.NewArticles("articles", atomic), pub)
	}

	mt.Run("end to end", func(mt *mtest.T) {
		pub := &recordingPublisher{}
		s := newBlog(mt, true, pub)
		sam := store.Comment{Username: "sam", Text: "hi"}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, articleDoc("hello-world", 0)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: articleDoc("hello-world", 1)}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: articleDoc("hello-world", 1, sam)}),
		)

		w := do(s, http.MethodGet, "/api/articles/hello-world", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"hello-world","upvotes":0,"comments":[]}`, w.Body.String())

		w = do(s, http.MethodPost, "/api/articles/hello-world/upvote", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"hello-world","upvotes":1,"comments":[]}`, w.Body.String())

		w = do(s, http.MethodPost, "/api/articles/hello-world/add-comment", `{"username":"sam","text":"hi"}`)
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"hello-world","upvotes":1,"comments":[{"username":"sam","text":"hi"}]}`, w.Body.String())

		assert.Equal(mt, []string{"hello-world"}, pub.names)
	})

	mt.Run("get absent article is null", func(mt *mtest.T) {
		pub := &recordingPublisher{}
		s := newBlog(mt, true, pub)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		w := do(s, http.MethodGet, "/api/articles/nope", "")
		assert.Equal(mt, http.StatusOK, w.Code)
		assert.Equal(mt, "null", w.Body.String())
		assert.Empty(mt, pub.names)
	})

	mt.Run("publish failure does not fail the read", func(mt *mtest.T) {
		s := newBlog(mt, true, &recordingPublisher{err: errors.New("redis down")})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, articleDoc("learn-go", 2)))

		w := do(s, http.MethodGet, "/api/articles/learn-go", "")
		assert.Equal(mt, http.StatusOK, w.Code)
	})

	mt.Run("get returns every stored field", func(mt *mtest.T) {
		s := newBlog(mt, true, &recordingPublisher{})
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "learn-react"},
			{Key: "title", Value: "Learn React"},
			{Key: "upvotes", Value: "3"},
			{Key: "comments", Value: bson.A{bson.D{{Key: "username", Value: "ana"}, {Key: "text", Value: "nice"}, {Key: "likes", Value: 2}}}},
		}))

		w := do(s, http.MethodGet, "/api/articles/learn-react", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"_id":"`+id.Hex()+`","name":"learn-react","title":"Learn React","upvotes":"3",`+
			`"comments":[{"username":"ana","text":"nice","likes":2}]}`, w.Body.String())
	})

	mt.Run("get renders null comments as an empty list", func(mt *mtest.T) {
		s := newBlog(mt, true, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "name", Value: "bare"}, {Key: "upvotes", Value: 0}, {Key: "comments", Value: nil},
		}))

		w := do(s, http.MethodGet, "/api/articles/bare", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"bare","upvotes":0,"comments":[]}`, w.Body.String())
	})

	mt.Run("view publishing is bounded by publish_timeout", func(mt *mtest.T) {
		cfg := testConfig(mt)
		cfg.Redis.PublishTimeout = 20 * time.Millisecond
		pub := &stalledPublisher{}
		s := NewBlog(cfg, store.NewPooled(mt.Client, "my-blog"), store.NewArticles("articles", true), pub)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, articleDoc("learn-go", 2)))

		start := time.Now()
		w := do(s, http.MethodGet, "/api/articles/learn-go", "")
		assert.Equal(mt, http.StatusOK, w.Code)
		assert.Less(mt, time.Since(start), 5*time.Second)
		assert.True(mt, pub.hadDeadline)
	})

	mt.Run("upvote absent article is a server error", func(mt *mtest.T) {
		s := newBlog(mt, false, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		w := do(s, http.MethodPost, "/api/articles/nope/upvote", "")
		require.Equal(mt, http.StatusInternalServerError, w.Code)

		var body ErrorResponse
		require.NoError(mt, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(mt, "Error connecting to db", body.Message)
		assert.Equal(mt, store.ErrNotFound.Error(), body.Error)
	})

	mt.Run("add-comment absent article is a server error", func(mt *mtest.T) {
		s := newBlog(mt, true, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		w := do(s, http.MethodPost, "/api/articles/nope/add-comment", `{"username":"a","text":"b"}`)
		assert.Equal(mt, http.StatusInternalServerError, w.Code)
	})

	mt.Run("read-modify-write upvote", func(mt *mtest.T) {
		s := newBlog(mt, false, nil)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, articleDoc("learn-go", 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, articleDoc("learn-go", 6)),
		)

		w := do(s, http.MethodPost, "/api/articles/learn-go/upvote", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"learn-go","upvotes":6,"comments":[]}`, w.Body.String())
	})

	mt.Run("malformed comment body is stored empty", func(mt *mtest.T) {
		s := newBlog(mt, true, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: articleDoc("learn-go", 0, store.Comment{})}))

		w := do(s, http.MethodPost, "/api/articles/learn-go/add-comment", `{"username":`)
		require.Equal(mt, http.StatusOK, w.Code)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "findAndModify", evt.CommandName)
		assert.Equal(mt, "", evt.Command.Lookup("update", "$push", "comments", "username").StringValue())
	})
}

func TestDataAccessFailure(t *testing.T) {
	s := NewBlog(testConfig(t), unreachableScope{}, store.NewArticles("articles", true), nil)

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/api/articles/hello-world", ""},
		{http.MethodPost, "/api/articles/hello-world/upvote", ""},
		{http.MethodPost, "/api/articles/hello-world/add-comment", `{"username":"a","text":"b"}`},
		{http.MethodGet, "/api/health", ""},
	} {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			w := do(s, tc.method, tc.target, tc.body)
			require.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t,
				`{"message":"Error connecting to db","error":"server selection error: context deadline exceeded"}`,
				w.Body.String())
		})
	}
}

func TestFrontend(t *testing.T) {
	s := NewBlog(testConfig(t), unreachableScope{}, store.NewArticles("articles", true), nil)

	t.Run("static file", func(t *testing.T) {
		w := do(s, http.MethodGet, "/static/js/main.js", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "console.log(1)", w.Body.String())
	})

	for _, target := range []string{"/", "/about", "/articles/hello-world", "/static/js/missing.js", "/api/unknown"} {
		t.Run("entry document for "+target, func(t *testing.T) {
			w := do(s, http.MethodGet, target, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, indexHTML, w.Body.String())
		})
	}

	t.Run("unmatched post", func(t *testing.T) {
		w := do(s, http.MethodPost, "/articles/hello-world", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMiddleware(t *testing.T) {
	s := NewBlog(testConfig(t), unreachableScope{}, store.NewArticles("articles", true), nil)

	t.Run("request id is generated", func(t *testing.T) {
		w := do(s, http.MethodGet, "/about", "")
		assert.Len(t, w.Header().Get(requestIDHeader), 36)
	})

	t.Run("request id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/about", nil)
		req.Header.Set(requestIDHeader, "0b6a3d1c-5a8e-4f0a-9c1d-3e2f4a5b6c7d")
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, req)
		assert.Equal(t, "0b6a3d1c-5a8e-4f0a-9c1d-3e2f4a5b6c7d", w.Header().Get(requestIDHeader))
	})

	t.Run("security headers", func(t *testing.T) {
		w := do(s, http.MethodGet, "/about", "")
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("metrics", func(t *testing.T) {
		do(s, http.MethodGet, "/about", "")
		w := do(s, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "blog_http_requests_total")
	})
}

func TestHealth(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("ok", func(mt *mtest.T) {
		s := NewBlog(testConfig(mt), store.NewPooled(mt.Client, "my-blog"), store.NewArticles("articles", true), nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		w := do(s, http.MethodGet, "/api/health", "")
		assert.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"status":"ok"}`, w.Body.String())
	})
}

func TestViewRoutes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("get and list", func(mt *mtest.T) {
		s := NewViews(testConfig(mt), store.NewPooled(mt.Client, "my-blog"), analytics.NewViews(analytics.DefaultCollection))
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "my-blog.views", mtest.FirstBatch,
				bson.D{{Key: "name", Value: "hello-world"}, {Key: "views", Value: 4}}),
			mtest.CreateCursorResponse(0, "my-blog.views", mtest.FirstBatch,
				bson.D{{Key: "name", Value: "hello-world"}, {Key: "views", Value: 4}},
				bson.D{{Key: "name", Value: "learn-go"}, {Key: "views", Value: 1}}),
		)

		w := do(s, http.MethodGet, "/api/views/hello-world", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `{"name":"hello-world","views":4}`, w.Body.String())

		w = do(s, http.MethodGet, "/api/views", "")
		require.Equal(mt, http.StatusOK, w.Code)
		assert.JSONEq(mt, `[{"name":"hello-world","views":4},{"name":"learn-go","views":1}]`, w.Body.String())

		w = do(s, http.MethodGet, "/elsewhere", "")
		assert.Equal(mt, http.StatusNotFound, w.Code)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewBlog(testConfig(t), unreachableScope{}, store.NewArticles("articles", true), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
