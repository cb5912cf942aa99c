package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/krysselista/backend/core"
)

var orderingParam = "ordering"

// orderableFields whitelists the column names the ordering query param may
// reference; anything else never reaches the ORDER BY clause.
var orderableFields = map[string]bool{
	"id":         true,
	"name":       true,
	"email":      true,
	"is_active":  true,
	"created_at": true,
	"updated_at": true,
	"last_login": true,
}

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
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
		if !orderableFields[field] {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
