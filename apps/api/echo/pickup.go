package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
)

type pickupApi struct {
	svc      pickup.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerPickupAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc pickup.Service, userSvc user.Service, validate *validator.Validate) {
	api := pickupApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	pg := g.Group("/pickups", jwt)

	pg.POST("", api.create)
	pg.GET("/pending", api.pending, staffMiddleware())
	pg.GET("/approved", api.approved, staffMiddleware())
	pg.GET("/approved/last", api.lastApproved)
	pg.POST("/:id/approve", api.approve, staffMiddleware())
	pg.POST("/:id/reject", api.reject, staffMiddleware())
	pg.GET("/stream", api.stream)
}

// Handlers

func (api *pickupApi) create(ctx echo.Context) error {
	var data pickup.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	r, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *pickupApi) pending(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqs, err := api.svc.Pending(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []pickup.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *pickupApi) approved(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	reqs, err := api.svc.Approved(ctx.Request().Context(), ctxUsr, limit)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []pickup.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

// lastApproved serves the "who collected this child last" lookup; open to
// staff and the child's own guardians.
func (api *pickupApi) lastApproved(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	r, err := api.svc.LastApproved(ctx.Request().Context(), ctxUsr, ctx.QueryParam("child_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *pickupApi) approve(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Approve)
}

func (api *pickupApi) reject(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Reject)
}

func (api *pickupApi) decide(ctx echo.Context, op func(context.Context, user.User, string) (pickup.Request, error)) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	r, err := op(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}
