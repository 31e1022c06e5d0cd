package mux

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRegister(t *testing.T, tbl *Table, method, pattern, endpoint string) *Rule {
	t.Helper()

	r, err := tbl.Register(method, pattern, endpoint)
	require.NoError(t, err)
	return r
}

func TestTableRegister(t *testing.T) {
	t.Run("assigns increasing ids", func(t *testing.T) {
		tbl := NewTable()
		r1 := mustRegister(t, tbl, http.MethodGet, "/a", "a")
		r2 := mustRegister(t, tbl, http.MethodGet, "/b", "b")

		assert.Less(t, r1.ID(), r2.ID())
		assert.Equal(t, http.MethodGet, r1.Method())
		assert.Equal(t, "a", r1.Endpoint())
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("normalizes method case", func(t *testing.T) {
		tbl := NewTable()
		r := mustRegister(t, tbl, "post", "/a", "a")
		assert.Equal(t, http.MethodPost, r.Method())
	})

	t.Run("rejects unsupported method", func(t *testing.T) {
		tbl := NewTable()
		_, err := tbl.Register("TRACE", "/a", "a")
		assert.ErrorIs(t, err, ErrInvalidMethod)
		assert.Equal(t, 0, tbl.Len())
	})

	t.Run("rejects empty endpoint", func(t *testing.T) {
		tbl := NewTable()
		_, err := tbl.Register(http.MethodGet, "/a", "")
		assert.Error(t, err)
	})

	t.Run("returns pattern errors", func(t *testing.T) {
		tbl := NewTable()
		_, err := tbl.Register(http.MethodGet, "/<int:id>/<id>", "dup")

		var perr *PatternError
		assert.True(t, errors.As(err, &perr))
		assert.Equal(t, 0, tbl.Len())
	})

	t.Run("string includes method pattern and endpoint", func(t *testing.T) {
		tbl := NewTable()
		r := mustRegister(t, tbl, http.MethodGet, "/users/<int:id>", "user")
		assert.Equal(t, "GET /users/<int:id> (user)", r.String())
	})
}

func TestTableResolve(t *testing.T) {
	t.Run("static path resolves with empty vars", func(t *testing.T) {
		patterns := []string{"/", "/about", "/a/b/c", "/docs/"}

		tbl := NewTable()
		for _, p := range patterns {
			mustRegister(t, tbl, http.MethodGet, p, "static "+p)
		}

		for _, p := range patterns {
			rule, vars, err := tbl.Resolve(http.MethodGet, p)
			require.NoError(t, err, p)
			assert.Equal(t, p, rule.Pattern())
			assert.Empty(t, vars)
		}
	})

	t.Run("binds typed variables", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/users/<int:id>/posts/<slug>", "post")

		rule, vars, err := tbl.Resolve(http.MethodGet, "/users/42/posts/hello")
		require.NoError(t, err)
		assert.Equal(t, "post", rule.Endpoint())
		assert.Equal(t, Vars{"id": 42, "slug": "hello"}, vars)
	})

	t.Run("non-numeric int segment is not found", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/users/<int:id>", "user")

		for _, p := range []string{"/users/abc", "/users/4x", "/users/-3", "/users/1.5"} {
			_, _, err := tbl.Resolve(http.MethodGet, p)

			var nf *NotFoundError
			require.True(t, errors.As(err, &nf), p)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, p, nf.Path)
		}
	})

	t.Run("static rule beats placeholder in either order", func(t *testing.T) {
		orders := [][]string{
			{"/users/me", "/users/<id>"},
			{"/users/<id>", "/users/me"},
		}

		for _, order := range orders {
			tbl := NewTable()
			for _, p := range order {
				mustRegister(t, tbl, http.MethodGet, p, p)
			}

			rule, vars, err := tbl.Resolve(http.MethodGet, "/users/me")
			require.NoError(t, err)
			assert.Equal(t, "/users/me", rule.Endpoint())
			assert.Empty(t, vars)

			rule, vars, err = tbl.Resolve(http.MethodGet, "/users/bob")
			require.NoError(t, err)
			assert.Equal(t, "/users/<id>", rule.Endpoint())
			assert.Equal(t, Vars{"id": "bob"}, vars)
		}
	})

	t.Run("equally specific rules resolve to the first registered", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/items/<name>", "first")
		mustRegister(t, tbl, http.MethodGet, "/items/<int:id>", "second")

		rule, vars, err := tbl.Resolve(http.MethodGet, "/items/12")
		require.NoError(t, err)
		assert.Equal(t, "first", rule.Endpoint())
		assert.Equal(t, Vars{"name": "12"}, vars)
	})

	t.Run("typed placeholder beats path placeholder", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/files/<path:rest>", "tree")
		mustRegister(t, tbl, http.MethodGet, "/files/<name>", "file")

		rule, _, err := tbl.Resolve(http.MethodGet, "/files/readme")
		require.NoError(t, err)
		assert.Equal(t, "file", rule.Endpoint())

		rule, vars, err := tbl.Resolve(http.MethodGet, "/files/docs/readme")
		require.NoError(t, err)
		assert.Equal(t, "tree", rule.Endpoint())
		assert.Equal(t, Vars{"rest": "docs/readme"}, vars)
	})

	t.Run("static rule beats path placeholder registered first", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/files/<path:rest>", "tree")
		mustRegister(t, tbl, http.MethodGet, "/files", "index")

		rule, vars, err := tbl.Resolve(http.MethodGet, "/files")
		require.NoError(t, err)
		assert.Equal(t, "index", rule.Endpoint())
		assert.Empty(t, vars)

		rule, vars, err = tbl.Resolve(http.MethodGet, "/files/")
		require.NoError(t, err)
		assert.Equal(t, "tree", rule.Endpoint())
		assert.Equal(t, Vars{"rest": ""}, vars)
	})

	t.Run("path placeholder does not match without its slash", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/files/<path:rest>", "tree")

		_, _, err := tbl.Resolve(http.MethodGet, "/files")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("longer literal prefix wins between equal scores", func(t *testing.T) {
		orders := [][]string{
			{"/<y>/b", "/a/<x>"},
			{"/a/<x>", "/<y>/b"},
		}

		for _, order := range orders {
			tbl := NewTable()
			for _, p := range order {
				mustRegister(t, tbl, http.MethodGet, p, p)
			}

			rule, vars, err := tbl.Resolve(http.MethodGet, "/a/b")
			require.NoError(t, err)
			assert.Equal(t, "/a/<x>", rule.Endpoint())
			assert.Equal(t, Vars{"x": "b"}, vars)

			rule, vars, err = tbl.Resolve(http.MethodGet, "/c/b")
			require.NoError(t, err)
			assert.Equal(t, "/<y>/b", rule.Endpoint())
			assert.Equal(t, Vars{"y": "c"}, vars)
		}
	})

	t.Run("path placeholder matches empty and nested remainders", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/files/<path:rest>", "files")

		_, vars, err := tbl.Resolve(http.MethodGet, "/files/")
		require.NoError(t, err)
		assert.Equal(t, Vars{"rest": ""}, vars)

		_, vars, err = tbl.Resolve(http.MethodGet, "/files/a/b/c")
		require.NoError(t, err)
		assert.Equal(t, Vars{"rest": "a/b/c"}, vars)
	})

	t.Run("trailing slash is significant", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/docs/", "docs")
		mustRegister(t, tbl, http.MethodGet, "/about", "about")

		_, _, err := tbl.Resolve(http.MethodGet, "/docs")
		assert.ErrorIs(t, err, ErrNotFound)

		_, _, err = tbl.Resolve(http.MethodGet, "/about/")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong method is not allowed", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/widgets", "widgets")

		_, _, err := tbl.Resolve(http.MethodPost, "/widgets")

		var mna *MethodNotAllowedError
		require.True(t, errors.As(err, &mna))
		assert.ErrorIs(t, err, ErrMethodMismatch)
		assert.Equal(t, http.MethodPost, mna.Method)
		assert.Contains(t, mna.Allowed, http.MethodGet)
		assert.Equal(t, []string{http.MethodGet, http.MethodHead}, mna.Allowed)
	})

	t.Run("allowed methods are sorted", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodPut, "/w/<int:id>", "put")
		mustRegister(t, tbl, http.MethodDelete, "/w/<int:id>", "delete")
		mustRegister(t, tbl, http.MethodPatch, "/w/<id>", "patch")

		_, _, err := tbl.Resolve(http.MethodGet, "/w/7")

		var mna *MethodNotAllowedError
		require.True(t, errors.As(err, &mna))
		assert.Equal(t, []string{http.MethodDelete, http.MethodPatch, http.MethodPut}, mna.Allowed)
	})

	t.Run("unmatched path is not found even with other methods registered", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodPost, "/w/<int:id>", "w")

		_, _, err := tbl.Resolve(http.MethodGet, "/w/abc")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrMethodMismatch)
	})

	t.Run("head falls back to get", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/page", "page")

		rule, _, err := tbl.Resolve(http.MethodHead, "/page")
		require.NoError(t, err)
		assert.Equal(t, "page", rule.Endpoint())
	})

	t.Run("explicit head rule wins over get", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/page", "get")
		mustRegister(t, tbl, http.MethodHead, "/page", "head")

		rule, _, err := tbl.Resolve(http.MethodHead, "/page")
		require.NoError(t, err)
		assert.Equal(t, "head", rule.Endpoint())
	})

	t.Run("any rules rank below exact method rules", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, MethodAny, "/hook/<path:rest>", "any")
		mustRegister(t, tbl, http.MethodPost, "/hook/<path:rest>", "post")

		rule, _, err := tbl.Resolve(http.MethodPost, "/hook/x")
		require.NoError(t, err)
		assert.Equal(t, "post", rule.Endpoint())

		rule, _, err = tbl.Resolve(http.MethodDelete, "/hook/x")
		require.NoError(t, err)
		assert.Equal(t, "any", rule.Endpoint())
	})

	t.Run("path without leading slash is not found", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/", "root")

		_, _, err := tbl.Resolve(http.MethodGet, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTableAllowedMethods(t *testing.T) {
	t.Run("lists matching methods", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, http.MethodGet, "/a", "get")
		mustRegister(t, tbl, http.MethodPost, "/a", "post")
		mustRegister(t, tbl, http.MethodDelete, "/b", "delete")

		assert.Equal(t, []string{http.MethodGet, http.MethodHead, http.MethodPost}, tbl.AllowedMethods("/a"))
		assert.Equal(t, []string{http.MethodDelete}, tbl.AllowedMethods("/b"))
		assert.Empty(t, tbl.AllowedMethods("/c"))
	})

	t.Run("any rule allows every method", func(t *testing.T) {
		tbl := NewTable()
		mustRegister(t, tbl, MethodAny, "/a", "any")

		assert.Equal(t, []string{
			http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions,
			http.MethodPatch, http.MethodPost, http.MethodPut,
		}, tbl.AllowedMethods("/a"))
	})
}

func TestTableRules(t *testing.T) {
	tbl := NewTable()
	mustRegister(t, tbl, MethodAny, "/any", "any")
	mustRegister(t, tbl, http.MethodPost, "/p", "post")
	mustRegister(t, tbl, http.MethodGet, "/<name>", "name")
	mustRegister(t, tbl, http.MethodGet, "/static", "static")

	var got []string
	for _, r := range tbl.Rules() {
		got = append(got, r.Endpoint())
	}
	assert.Equal(t, []string{"static", "name", "post", "any"}, got)
}

func TestTableLookup(t *testing.T) {
	tbl := NewTable()
	mustRegister(t, tbl, http.MethodGet, "/a", "x")
	mustRegister(t, tbl, http.MethodGet, "/b/<id>", "y")
	mustRegister(t, tbl, http.MethodPost, "/a", "x")

	rules := tbl.Lookup("x")
	require.Len(t, rules, 2)
	assert.Equal(t, http.MethodGet, rules[0].Method())
	assert.Equal(t, http.MethodPost, rules[1].Method())
	assert.Nil(t, tbl.Lookup("missing"))
}

func TestTableConcurrentResolve(t *testing.T) {
	tbl := NewTable()
	mustRegister(t, tbl, http.MethodGet, "/users/<int:id>/files/<path:rest>", "file")

	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				rest := fmt.Sprintf("w%d/i%d", w, i)
				_, vars, err := tbl.Resolve(http.MethodGet, fmt.Sprintf("/users/%d/files/%s", w, rest))
				if err != nil {
					errs <- err
					return
				}
				if id, _ := vars.Int("id"); id != w || vars.String("rest") != rest {
					errs <- fmt.Errorf("worker %d got foreign bindings %v", w, vars)
					return
				}
			}
		}(w)
	}

	// Registrations interleaved with resolution.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if _, err := tbl.Register(http.MethodGet, fmt.Sprintf("/extra/%d", i), "extra"); err != nil {
				errs <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func BenchmarkTableResolveStatic(b *testing.B) {
	tbl := NewTable()
	if _, err := tbl.Register(http.MethodGet, "/users/me", "me"); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		_, _, _ = tbl.Resolve(http.MethodGet, "/users/me")
	}
}

func BenchmarkTableResolveWithVars(b *testing.B) {
	tbl := NewTable()
	if _, err := tbl.Register(http.MethodGet, "/users/<int:id>/posts/<slug>", "post"); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		_, _, _ = tbl.Resolve(http.MethodGet, "/users/42/posts/hello")
	}
}

func BenchmarkTableResolveMultipleRules(b *testing.B) {
	tbl := NewTable()
	for i := range 10 {
		if _, err := tbl.Register(http.MethodGet, fmt.Sprintf("/route%d/<id>", i), fmt.Sprintf("route%d", i)); err != nil {
			b.Fatal(err)
		}
	}

	for b.Loop() {
		_, _, _ = tbl.Resolve(http.MethodGet, "/route9/42")
	}
}
