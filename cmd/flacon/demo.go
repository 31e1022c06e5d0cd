package main

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalvas/flacon/mux"
	"github.com/vitalvas/flacon/muxhandlers"
)

// Item is a resource of the in-memory store.
type Item struct {
	ID        string    `json:"id" xml:"id" yaml:"id" msgpack:"id"`
	Title     string    `json:"title" xml:"title" yaml:"title" msgpack:"title"`
	CreatedAt time.Time `json:"created_at" xml:"created_at" yaml:"created_at" msgpack:"created_at"`
}

type itemRequest struct {
	Title string `json:"title"`
}

// ErrorResponse is the body of a rejected item request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type store struct {
	mu    sync.RWMutex
	items map[string]Item
}

func newStore() *store {
	return &store{items: make(map[string]Item)}
}

type demoRoute struct {
	pattern  string
	endpoint string
	handler  mux.HandlerFunc
	methods  []string
}

// itemBodyLimit caps the body of item writes.
const itemBodyLimit = 4 << 10

// registerDemo adds the demo routes to app, plus the admin routes when admin
// is set.
func registerDemo(app *mux.App, admin bool) error {
	db := newStore()

	routes := []demoRoute{
		{pattern: "/", endpoint: "index", handler: index},
		{pattern: "/users/<int:id>", endpoint: "user", handler: showUser},
		{pattern: "/users/<name>", endpoint: "user_by_name", handler: showUserByName},
		{pattern: "/files/<path:rest>", endpoint: "files", handler: showFile},
		{pattern: "/teapot", endpoint: "teapot", handler: teapot},
		{pattern: "/echo", endpoint: "echo", handler: echo, methods: []string{http.MethodPost}},
		{pattern: "/items", endpoint: "list_items", handler: db.listItems},
		{pattern: "/items", endpoint: "create_item", handler: db.createItem, methods: []string{http.MethodPost}},
		{pattern: "/items/<id>", endpoint: "get_item", handler: db.getItem},
		{pattern: "/items/<id>", endpoint: "update_item", handler: db.updateItem, methods: []string{http.MethodPut}},
		{pattern: "/items/<id>", endpoint: "delete_item", handler: db.deleteItem, methods: []string{http.MethodDelete}},
	}

	if admin {
		routes = append(routes, demoRoute{pattern: "/admin/stats", endpoint: "admin_stats", handler: db.stats})
	}

	for _, r := range routes {
		if err := app.Route(r.pattern, r.endpoint, r.handler, r.methods...); err != nil {
			return err
		}
	}

	return nil
}

func index(*mux.Context) (any, error) {
	return "Hello, world!", nil
}

func showUser(c *mux.Context) (any, error) {
	id, _ := c.IntVar("id")
	profile, err := c.URLFor("user_by_name", map[string]any{"name": "user" + c.StringVar("id")})
	if err != nil {
		return nil, err
	}

	return map[string]any{"id": id, "profile": profile}, nil
}

func showUserByName(c *mux.Context) (any, error) {
	return map[string]any{"name": c.StringVar("name")}, nil
}

func showFile(c *mux.Context) (any, error) {
	rest := c.StringVar("rest")
	if strings.HasSuffix(rest, "/") || rest == "" {
		return "directory: /" + rest, nil
	}
	return "file: /" + rest, nil
}

func teapot(*mux.Context) (any, error) {
	return nil, mux.Abort(http.StatusTeapot).WithBody("I'm a teapot")
}

func echo(c *mux.Context) (any, error) {
	var v any
	if err := c.Bind(&v); err != nil {
		return nil, mux.Abort(http.StatusBadRequest).WithBody(err.Error())
	}
	return v, nil
}

func (s *store) listItems(*mux.Context) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, item)
	}

	slices.SortFunc(result, func(a, b Item) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return result, nil
}

func (s *store) createItem(c *mux.Context) (any, error) {
	req, err := bindItem(c)
	if err != nil {
		return nil, err
	}

	item := Item{
		ID:        uuid.New().String(),
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	resp, err := mux.JSON(http.StatusCreated, item)
	if err != nil {
		return nil, err
	}

	location, err := c.URLFor("get_item", map[string]any{"id": item.ID})
	if err != nil {
		return nil, err
	}
	resp.Header.Set("Location", location)

	return resp, nil
}

func (s *store) stats(c *mux.Context) (any, error) {
	s.mu.RLock()
	items := len(s.items)
	s.mu.RUnlock()

	return map[string]any{
		"app":   c.App().Name(),
		"user":  muxhandlers.BasicAuthUser(c),
		"items": items,
		"rules": c.App().Table().Len(),
	}, nil
}

func (s *store) getItem(c *mux.Context) (any, error) {
	s.mu.RLock()
	item, ok := s.items[c.StringVar("id")]
	s.mu.RUnlock()

	if !ok {
		return nil, errItemNotFound()
	}
	return item, nil
}

func (s *store) updateItem(c *mux.Context) (any, error) {
	req, err := bindItem(c)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[c.StringVar("id")]
	if !ok {
		return nil, errItemNotFound()
	}

	item.Title = req.Title
	s.items[item.ID] = item

	return item, nil
}

func (s *store) deleteItem(c *mux.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.StringVar("id")
	if _, ok := s.items[id]; !ok {
		return nil, errItemNotFound()
	}

	delete(s.items, id)

	return mux.NewResponse(http.StatusNoContent, nil), nil
}

func bindItem(c *mux.Context) (itemRequest, error) {
	var req itemRequest
	if err := c.BindJSON(&req); err != nil {
		return req, rejectItem(http.StatusBadRequest, "INVALID_JSON", err.Error())
	}

	if strings.TrimSpace(req.Title) == "" {
		return req, rejectItem(http.StatusBadRequest, "VALIDATION_ERROR", "Title is required")
	}

	return req, nil
}

func errItemNotFound() error {
	return rejectItem(http.StatusNotFound, "NOT_FOUND", "Item not found")
}

func rejectItem(code int, errCode, message string) error {
	resp, err := mux.JSON(code, ErrorResponse{Code: errCode, Message: message})
	if err != nil {
		return err
	}

	return mux.Abort(code).
		WithHeader("Content-Type", resp.Header.Get("Content-Type")).
		WithBodyBytes(resp.Body)
}
