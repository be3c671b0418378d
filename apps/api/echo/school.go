package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc}

	ug := g.Group("/users", requireSession)
	ug.GET("/admins", api.listAdmins)
	ug.GET("/teachers", api.listTeachers)

	cg := g.Group("/classes", requireSession)
	cg.GET("", api.listClasses)
	cg.GET("/:id/students", api.listClassStudents)
}

// registerPages mounts the role area pages. The server-wide guardMiddleware protects them.
func registerPages(e *echo.Echo, deps ServerDeps) {
	api := schoolApi{svc: deps.SchoolSvc}

	e.GET("/admin/dashboard", api.dashboard)
	e.GET("/teacher/classes", api.listClasses)
	e.GET("/student/class", api.myClass)
}

// Handlers

func (api *schoolApi) listAdmins(ctx echo.Context) error {
	admins, err := api.svc.ListAdmins(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing admins")
	}
	if admins == nil {
		admins = []user.User{}
	}
	return ctx.JSON(http.StatusOK, admins)
}

func (api *schoolApi) listTeachers(ctx echo.Context) error {
	teachers, err := api.svc.ListTeachers(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing teachers")
	}
	if teachers == nil {
		teachers = []school.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) listClasses(ctx echo.Context) error {
	classes, err := api.svc.ListPermittedClasses(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) listClassStudents(ctx echo.Context) error {
	students, err := api.svc.ListStudentsByClass(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Dashboard(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "aggregating dashboard")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *schoolApi) myClass(ctx echo.Context) error {
	roster, err := api.svc.MyClass(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "finding own class")
	}
	if roster.Students == nil {
		roster.Students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, roster)
}
