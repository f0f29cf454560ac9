package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matmarket/market-cli/internal/api"
	"github.com/matmarket/market-cli/internal/appctx"
	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
)

type testEnv struct {
	app    *appctx.App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestEnv builds an app talking JSON to handler, with a page size of 2.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	t.Setenv("MARKET_TOKEN", "tok")
	t.Setenv("MARKET_NO_KEYRING", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(appctx.DebugEnv, "")

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.CacheEnabled = false
	cfg.PageSize = 2

	app := appctx.NewApp(cfg)
	app.Client = api.NewClient(cfg, app.Auth, api.WithRetry(1, 0), api.WithHooks(app.Hooks))
	app.Market = market.NewService(app.Client)
	app.Flags.JSON = true

	env := &testEnv{app: app, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	app.SetStreams(env.stdout, env.stderr)
	require.NoError(t, app.ApplyFlags())
	return env
}

func (e *testEnv) run(cmd *cobra.Command, args ...string) error {
	// Match the root command: errors are rendered by the caller.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	cmd.SetContext(appctx.WithApp(context.Background(), e.app))
	return cmd.Execute()
}

type envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Summary string          `json:"summary"`
	Notice  string          `json:"notice"`
}

func (e *testEnv) response(t *testing.T) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &resp), e.stdout.String())
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func usageCode(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code, err.Error())
}

// =============================================================================
// Listings
// =============================================================================

func TestListingsListSendsFilters(t *testing.T) {
	var query atomic.Pointer[url.Values]
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		query.Store(&q)
		writeJSON(w, http.StatusOK, `[{"id":1,"title":"Rebar","price":2450,"quantity":30,"type":"sale","status":"active"}]`)
	})

	err := env.run(NewListingsCmd(), "list", "--material", "7", "--status", "active", "--search", " rebar ")
	require.NoError(t, err)

	q := *query.Load()
	assert.Equal(t, []string{"7"}, q["materialId"])
	assert.Equal(t, []string{"active"}, q["status"])
	assert.Equal(t, []string{"rebar"}, q["search"])
	assert.Equal(t, []string{"1"}, q["page"])
	assert.Equal(t, []string{"2"}, q["limit"])
	assert.Equal(t, []string{"en"}, q["lang"])
	assert.NotContains(t, q, "type")

	resp := env.response(t)
	assert.True(t, resp.OK)
	assert.Equal(t, "1 listing", resp.Summary)

	var listings []market.Listing
	require.NoError(t, json.Unmarshal(resp.Data, &listings))
	require.Len(t, listings, 1)
	assert.Equal(t, market.ID("1"), listings[0].ID)
	assert.Equal(t, "Rebar", listings[0].Title.String())
}

func TestListingsListAllDrainsPages(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, http.StatusOK, `{"data":[{"id":1,"title":"A"},{"id":2,"title":"B"}]}`)
		case "2":
			// Overlaps page 1 after an insert; the duplicate must be dropped.
			writeJSON(w, http.StatusOK, `{"data":[{"id":2,"title":"B"},{"id":3,"title":"C"}]}`)
		default:
			writeJSON(w, http.StatusOK, `{"data":[]}`)
		}
	})

	require.NoError(t, env.run(NewListingsCmd(), "list", "--all"))

	var listings []market.Listing
	require.NoError(t, json.Unmarshal(env.response(t).Data, &listings))
	ids := make([]market.ID, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	assert.Equal(t, []market.ID{"1", "2", "3"}, ids)
	assert.Equal(t, int32(3), calls.Load())
}

func TestListingsListAllHonorsMaxPages(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		writeJSON(w, http.StatusOK, fmt.Sprintf(`[{"id":"a%d"},{"id":"b%d"}]`, n, n))
	})

	require.NoError(t, env.run(NewListingsCmd(), "list", "--all", "--max-pages", "2"))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "4 listings", env.response(t).Summary)
}

func TestListingsListRejectsBadFilters(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	usageCode(t, env.run(NewListingsCmd(), "list", "--status", "bogus"))
	usageCode(t, env.run(NewListingsCmd(), "list", "--type", "barter"))
	usageCode(t, env.run(NewListingsCmd(), "list", "--page", "0"))
}

func TestListingsShowNotFound(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listings/99", r.URL.Path)
		writeJSON(w, http.StatusNotFound, `{"message":"Listing not found"}`)
	})

	err := env.run(NewListingsCmd(), "show", "99")
	require.Error(t, err)
	assert.Equal(t, output.CodeNotFound, output.AsError(err).Code)
}

func TestListingsShowRequiresID(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	err := env.run(NewListingsCmd(), "show")
	usageCode(t, err)
	assert.Equal(t, "Run: market listings list", output.AsError(err).Hint)
}

func TestListingsCreatePostsPayload(t *testing.T) {
	var body map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, `{"data":{"id":42,"title":"Rebar 12mm","type":"sale","status":"pending"}}`)
	})

	err := env.run(NewListingsCmd(), "create",
		"--title", "Rebar 12mm", "--material", "7", "--price", "2,450",
		"--currency", "sar", "--quantity", "30", "--unit", "ton")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"en": "Rebar 12mm"}, body["title"])
	assert.Equal(t, 2450.0, body["price"])
	assert.Equal(t, "SAR", body["currency"])
	assert.Equal(t, "sale", body["type"])
	assert.Equal(t, "7", body["materialId"])

	resp := env.response(t)
	assert.Equal(t, "Listing created", resp.Summary)
	var created market.Listing
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, market.ID("42"), created.ID)
}

func TestListingsCreateValidates(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"missing title", []string{"--material", "7", "--price", "1", "--quantity", "1"}},
		{"zero quantity", []string{"--title", "X", "--material", "7", "--price", "1", "--quantity", "0"}},
		{"bad price", []string{"--title", "X", "--material", "7", "--price", "cheap", "--quantity", "1"}},
		{"auction without end", []string{"--title", "X", "--material", "7", "--price", "1", "--quantity", "1", "--type", "auction"}},
		{"bad end", []string{"--title", "X", "--material", "7", "--price", "1", "--quantity", "1", "--type", "auction", "--ends", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usageCode(t, env.run(NewListingsCmd(), append([]string{"create"}, tt.args...)...))
		})
	}
}

func TestListingsUpdateNeedsFields(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	err := env.run(NewListingsCmd(), "update", "42")
	usageCode(t, err)
	assert.Equal(t, "Nothing to update", output.AsError(err).Message)
}

func TestListingsUpdateSendsOnlyGivenFields(t *testing.T) {
	var body map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/listings/42", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"id":42,"title":"Rebar","status":"active"}`)
	})

	require.NoError(t, env.run(NewListingsCmd(), "update", "42", "--status", "active"))
	assert.Equal(t, map[string]any{"status": "active"}, body)
	assert.Equal(t, "Listing updated", env.response(t).Summary)
}

func TestListingsDeleteRequiresYesWithoutTerminal(t *testing.T) {
	var deleted atomic.Bool
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})

	err := env.run(NewListingsCmd(), "delete", "42")
	usageCode(t, err)
	assert.False(t, deleted.Load())
	assert.Empty(t, env.stdout.String(), "a refused delete writes nothing to stdout")

	require.NoError(t, env.run(NewListingsCmd(), "delete", "42", "--yes"))
	assert.True(t, deleted.Load())

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.response(t).Data, &data))
	assert.Equal(t, "42", data["id"])
	assert.Equal(t, true, data["deleted"])
}

// =============================================================================
// Catalog resources
// =============================================================================

func TestMaterialsListFilterByCategory(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/materials", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("categoryId"))
		writeJSON(w, http.StatusOK, `[{"id":7,"name":{"en":"Steel","ar":"فولاذ"}}]`)
	})

	require.NoError(t, env.run(NewMaterialsCmd(), "list", "--category", "3"))
	assert.Equal(t, "1 material", env.response(t).Summary)
}

func TestMaterialsCreateRequiresCategory(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	usageCode(t, env.run(NewMaterialsCmd(), "create", "--name", "Steel"))
}

func TestCategoriesCreateSendsLocalizedName(t *testing.T) {
	var body map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, `{"id":5,"name":{"en":"Metals","ar":"معادن"}}`)
	})

	require.NoError(t, env.run(NewCategoriesCmd(), "create", "--name", "Metals", "--name-ar", "معادن"))
	assert.Equal(t, map[string]any{"en": "Metals", "ar": "معادن"}, body["name"])
	assert.Equal(t, "Category created", env.response(t).Summary)
}

func TestCompaniesListFilterByCountry(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies", r.URL.Path)
		assert.Equal(t, "sa", r.URL.Query().Get("countryId"))
		writeJSON(w, http.StatusOK, `[]`)
	})

	require.NoError(t, env.run(NewCompaniesCmd(), "list", "--country", "sa"))
	assert.Equal(t, "0 companies", env.response(t).Summary)
}

func TestCountriesUpdateNeedsFields(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	usageCode(t, env.run(NewCountriesCmd(), "update", "1"))
}

// =============================================================================
// Users
// =============================================================================

func TestUsersCreatePartialFavorites(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users":
			writeJSON(w, http.StatusCreated, `{"id":11,"name":"Sara Ali","phone":"+966500000000"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/users/11/favorites":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["materialId"] == "9" {
				writeJSON(w, http.StatusUnprocessableEntity, `{"message":"material not found"}`)
				return
			}
			writeJSON(w, http.StatusCreated, `{}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	err := env.run(NewUsersCmd(), "create", "--name", "Sara Ali", "--phone", "+966500000000",
		"--favorite-material", "7", "--favorite-material", "9")
	require.NoError(t, err)

	resp := env.response(t)
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Notice, "User created, but favorite 9")
	assert.Contains(t, resp.Notice, "material not found")
	assert.NotContains(t, resp.Notice, "favorite 7")

	var user market.User
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	assert.Equal(t, market.ID("11"), user.ID)
	require.Len(t, user.Favorites, 1)
	assert.Equal(t, market.ID("7"), user.Favorites[0].MaterialID)
}

func TestUsersCreateNeedsContact(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	usageCode(t, env.run(NewUsersCmd(), "create", "--name", "Sara"))
	usageCode(t, env.run(NewUsersCmd(), "create", "--email", "sara@example.com"))
}

func TestUsersFavorites(t *testing.T) {
	var removed atomic.Bool
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users/11/favorites":
			writeJSON(w, http.StatusOK, `[{"materialId":7,"material":{"id":7,"name":"Steel"}}]`)
		case r.Method == http.MethodDelete && r.URL.Path == "/users/11/favorites/7":
			removed.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, env.run(NewUsersCmd(), "favorites", "11"))
	assert.Equal(t, "1 favorite", env.response(t).Summary)

	env.stdout.Reset()
	require.NoError(t, env.run(NewUsersCmd(), "favorites", "remove", "11", "7"))
	assert.True(t, removed.Load())
	assert.Equal(t, "Favorite removed", env.response(t).Summary)
}

// =============================================================================
// Config and auth
// =============================================================================

func TestConfigSetLocalThenShow(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, env.run(NewConfigCmd(), "set", "page_size", "50", "--local"))

	raw, err := os.ReadFile(filepath.Join(dir, ".market", "config.json"))
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, 50.0, saved["page_size"])

	env.stdout.Reset()
	require.NoError(t, env.run(NewConfigCmd(), "show"))
	var shown map[string]map[string]string
	require.NoError(t, json.Unmarshal(env.response(t).Data, &shown))
	assert.Contains(t, shown, "language")
	assert.Equal(t, "en", shown["language"]["value"])
}

func TestConfigSetRejectsLocalBaseURL(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	t.Chdir(t.TempDir())

	usageCode(t, env.run(NewConfigCmd(), "set", "base_url", "https://evil.example", "--local"))
}

func TestAuthLoginStatusLogout(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	t.Setenv("MARKET_TOKEN", "")

	usageCode(t, env.run(NewAuthCmd(), "login"))

	require.NoError(t, env.run(NewAuthCmd(), "login", "--token", "secret"))
	assert.True(t, env.app.Auth.Status().Authenticated)

	env.stdout.Reset()
	require.NoError(t, env.run(NewAuthCmd(), "status"))
	assert.Contains(t, env.response(t).Summary, "Authenticated with ")

	require.NoError(t, env.run(NewAuthCmd(), "logout"))
	assert.False(t, env.app.Auth.Status().Authenticated)
}

func TestBrowseNeedsTerminal(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	usageCode(t, env.run(NewBrowseCmd()))
}

func TestVersionWithoutApp(t *testing.T) {
	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "market version")
}
