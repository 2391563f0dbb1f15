package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/klabu/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the ordering query param ("field1,-field2"). Only fields present
// in allowed (JSON field name -> column name) make it through; anything else
// is dropped before it can reach a query.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: col, Ascending: !descending})
	}
}
