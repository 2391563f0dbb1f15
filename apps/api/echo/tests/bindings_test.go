package tests

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/klabu/apps/api/echo"
	"github.com/trezcool/klabu/core"
)

func Test_ordering_bind(t *testing.T) {
	e := echo.New()
	allowed := map[string]string{
		"full_name":     "full_name",
		"registered_at": "registered_at",
	}

	tests := []struct {
		name  string
		param string
		want  []core.DBOrdering
	}{
		{name: "empty param"},
		{
			name:  "single field",
			param: "full_name",
			want:  []core.DBOrdering{{Field: "full_name", Ascending: true}},
		},
		{
			name:  "descending",
			param: "-registered_at",
			want:  []core.DBOrdering{{Field: "registered_at", Ascending: false}},
		},
		{
			name:  "unknown field is dropped",
			param: "full_name,last_login",
			want:  []core.DBOrdering{{Field: "full_name", Ascending: true}},
		},
		{
			name:  "sql in the field name is dropped",
			param: "registered_at;SELECT pg_sleep(10)--",
		},
		{
			name:  "sql after a valid field is dropped",
			param: "full_name,registered_at DESC;--",
			want:  []core.DBOrdering{{Field: "full_name", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := url.Values{"ordering": {tt.param}}.Encode()
			req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())

			ord := new(Ordering)
			ord.Bind(ctx, allowed)
			assert.Equal(t, tt.want, ord.Orderings)
		})
	}
}
