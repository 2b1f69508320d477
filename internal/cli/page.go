package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/hook"
	"github.com/roach88/gqlcache/internal/ssr"
)

// Page is a server-rendered page of widgets, read from YAML:
//
//	title: Profile
//	widgets:
//	  - name: user
//	    query: "query { viewer { id } }"
//	    select: viewer.id
//	  - name: repos
//	    query: "query ($id: ID!) { repos(owner: $id) { name } }"
//	    variables: { id: $user }
//	    select: "repos.#.name"
//
// A string variable of the form "$name" takes the selected value of the
// widget called name, so that widget must render first.
type Page struct {
	Title   string   `yaml:"title" json:"title"`
	Widgets []Widget `yaml:"widgets" json:"widgets"`
}

// Widget is one operation on a page.
type Widget struct {
	Name      string         `yaml:"name" json:"name"`
	Query     string         `yaml:"query" json:"query"`
	Variables map[string]any `yaml:"variables" json:"variables,omitempty"`

	// Select is a gjson path into the result data. Empty prints the data.
	Select string `yaml:"select" json:"select,omitempty"`
}

// LoadPage reads a page file.
func LoadPage(path string) (Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read page: %w", err)
	}
	var p Page
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Page{}, fmt.Errorf("failed to parse page %s: %w", path, err)
	}
	seen := make(map[string]bool, len(p.Widgets))
	for i, w := range p.Widgets {
		if w.Name == "" || w.Query == "" {
			return Page{}, fmt.Errorf("page %s: widget %d needs a name and a query", path, i+1)
		}
		if seen[w.Name] {
			return Page{}, fmt.Errorf("page %s: duplicate widget %q", path, w.Name)
		}
		seen[w.Name] = true
	}
	return p, nil
}

// pageRenderer renders a Page, one line per widget.
func pageRenderer(override fetchopts.Override) ssr.RenderFunc[Page] {
	return func(ctx context.Context, p Page) (string, error) {
		var b strings.Builder
		if p.Title != "" {
			fmt.Fprintf(&b, "# %s\n", p.Title)
		}

		values := make(map[string]string, len(p.Widgets))
		for _, w := range p.Widgets {
			vars, ready := resolveVariables(w.Variables, values)
			if !ready {
				fmt.Fprintf(&b, "%s: waiting\n", w.Name)
				continue
			}

			h, err := hook.New(ctx, hook.Options{
				Operation:            gql.Operation{Query: w.Query, Variables: vars},
				FetchOptionsOverride: override,
				LoadOnMount:          true,
			})
			if err != nil {
				return "", fmt.Errorf("widget %s: %w", w.Name, err)
			}

			st := h.State()
			switch {
			case st.CacheValue == nil:
				fmt.Fprintf(&b, "%s: loading\n", w.Name)
			case st.CacheValue.HasErrors():
				fmt.Fprintf(&b, "%s: %s\n", w.Name, strings.Join(st.CacheValue.ErrorLines(), "; "))
			default:
				v, err := selectValue(st.CacheValue.Data, w.Select)
				if err != nil {
					return "", fmt.Errorf("widget %s: %w", w.Name, err)
				}
				values[w.Name] = v
				fmt.Fprintf(&b, "%s: %s\n", w.Name, v)
			}
		}
		return b.String(), nil
	}
}

// resolveVariables substitutes "$widget" references. ready is false while
// a referenced widget has no value yet.
func resolveVariables(vars map[string]any, values map[string]string) (map[string]any, bool) {
	if len(vars) == 0 {
		return nil, true
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		ref, ok := v.(string)
		if !ok || !strings.HasPrefix(ref, "$") {
			out[k] = v
			continue
		}
		val, ok := values[strings.TrimPrefix(ref, "$")]
		if !ok {
			return nil, false
		}
		out[k] = val
	}
	return out, true
}

func selectValue(data map[string]any, path string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	if path == "" {
		return string(raw), nil
	}
	return gjson.GetBytes(raw, path).String(), nil
}
