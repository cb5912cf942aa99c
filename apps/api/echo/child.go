package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/user"
)

type childApi struct {
	svc      child.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerChildAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc child.Service, userSvc user.Service, validate *validator.Validate) {
	api := childApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	cg := g.Group("/children", jwt)

	// admin management
	cg.POST("", api.create, adminMiddleware())
	cg.GET("", api.query, staffMiddleware())
	cg.POST("/guardians", api.addGuardian, adminMiddleware())

	// parent view
	cg.GET("/mine", api.mine)
	cg.GET("/:id/pickup-options", api.pickupOptions)

	// authorized pickup persons; guardians manage their own child's list
	cg.POST("/authorized-persons", api.addAuthorizedPerson)
	cg.GET("/:id/authorized-persons", api.authorizedPersons)
}

// Handlers

func (api *childApi) create(ctx echo.Context) error {
	var data child.NewChild
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChild")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating child")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *childApi) query(ctx echo.Context) error {
	children, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	if children == nil {
		children = []child.Child{}
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *childApi) addGuardian(ctx echo.Context) error {
	var data child.NewGuardianLink
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGuardianLink")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// the guardian must be an existing parent user
	parent, err := api.userSvc.GetByID(ctx.Request().Context(), data.ParentID)
	if err != nil {
		return errors.Wrap(err, "finding parent by ID")
	}
	if !parent.IsParent() {
		return child.ErrNotParent
	}

	gl, err := api.svc.AddGuardian(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding guardian")
	}
	return ctx.JSON(http.StatusCreated, gl)
}

// mine lists the children the logged-in parent is a guardian of.
func (api *childApi) mine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	children, err := api.svc.QueryByGuardian(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying children by guardian")
	}
	if children == nil {
		children = []child.Child{}
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *childApi) pickupOptions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	options, err := api.svc.PickupOptions(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying pickup options")
	}
	return ctx.JSON(http.StatusOK, options)
}

func (api *childApi) addAuthorizedPerson(ctx echo.Context) error {
	var data child.NewAuthorizedPerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAuthorizedPerson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.requireAdminOrGuardian(ctx, data.ChildID); err != nil {
		return err
	}

	ap, err := api.svc.AddAuthorizedPerson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding authorized person")
	}
	return ctx.JSON(http.StatusCreated, ap)
}

func (api *childApi) authorizedPersons(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStaff() {
		if err := api.requireAdminOrGuardian(ctx, ctx.Param("id")); err != nil {
			return err
		}
	}

	persons, err := api.svc.AuthorizedPersons(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying authorized persons")
	}
	if persons == nil {
		persons = []child.AuthorizedPerson{}
	}
	return ctx.JSON(http.StatusOK, persons)
}

func (api *childApi) requireAdminOrGuardian(ctx echo.Context, childID string) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsAdmin() {
		return nil
	}
	isGuardian, err := api.svc.IsGuardian(ctx.Request().Context(), ctxUsr.ID, childID)
	if err != nil {
		return errors.Wrap(err, "checking guardian link")
	}
	if !isGuardian {
		return errHttpForbidden
	}
	return nil
}
