package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core/member"
)

type departmentApi struct {
	svc *member.Service
}

func registerDepartmentAPI(g *echo.Group, deps ServerDeps) {
	api := departmentApi{svc: deps.MemberSvc}

	// open endpoints; the registration form needs these
	g.GET("/departments", api.query)
	g.GET("/courses", api.queryCourses)
}

func (api *departmentApi) query(ctx echo.Context) error {
	depts, err := api.svc.QueryDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if depts == nil {
		depts = []member.Department{}
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *departmentApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.QueryCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []member.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}
