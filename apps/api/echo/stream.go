package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
)

// keepaliveInterval keeps proxies from reaping idle SSE connections.
const keepaliveInterval = 30 * time.Second

// stream pushes pickup request change events to the client as Server-Sent
// Events. Staff members see every event; parents only see events for
// requests they created. Events are re-fetch cues, not authoritative state.
func (api *pickupApi) stream(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub := api.svc.Feed().Subscribe()
	defer sub.Close()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Request().Context().Done():
			return nil

		case <-keepalive.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()

		case evt, ok := <-sub.C:
			if !ok {
				return nil
			}
			if !eventVisibleTo(ctxUsr, evt) {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				ctx.Logger().Errorf("%+v", errors.Wrap(err, "marshaling feed event"))
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func eventVisibleTo(usr user.User, evt pickup.Event) bool {
	if usr.IsStaff() {
		return true
	}
	return evt.Request.ParentID == usr.ID
}
