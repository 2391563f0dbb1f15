package echoapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

var (
	errMbrNotFoundInCtx  = errors.New("member object not found in echo.Context")
	errPictureMissing    = "a picture file is required"
	errPictureBadFormat  = "only JPEG and PNG pictures are allowed"
	pictureAllowedExts   = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}}
	pictureUploadSubPath = filepath.Join("media", "member_pictures")

	// sortable member list columns, keyed by JSON field name
	memberOrderingFields = map[string]string{
		"reg_number":    "reg_number",
		"full_name":     "full_name",
		"email":         "email",
		"status":        "status",
		"registered_at": "registered_at",
		"approved_at":   "approved_at",
	}
)

type memberApi struct {
	conf       *core.Config
	svc        *member.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := memberApi{
		conf:       deps.Conf,
		svc:        deps.MemberSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	mg := g.Group("/members")

	// un-authed endpoints
	mg.POST("/register", api.register)
	mg.POST("/login", api.login)

	// authed endpoints
	deadline := pictureDeadlineMiddleware(api.svc, "/v1/members/token-refresh", "/v1/members/picture")
	ag := mg.Group("", jwt, deadline)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("", api.query, staffMiddleware())
	ag.POST("/picture", api.uploadPicture)

	// moderation; the service decides who may moderate
	ag.POST("/:id/approve", api.approve)
	ag.POST("/:id/reject", api.reject)

	// detail endpoints
	dg := ag.Group("/:id", ctxMemberOrStaffMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
}

// Handlers

func (api *memberApi) register(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}

	mbr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *memberApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx, api.conf, data.Username, data.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Member{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, memberOrderingFields)

	members, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []member.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	mbr, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMbrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) update(ctx echo.Context) error {
	mbr, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMbrNotFoundInCtx, "retrieving object from context")
	}

	var data member.UpdateMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}

	mbr, err := api.svc.Update(ctx.Request().Context(), mbr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) approve(ctx echo.Context) error {
	ctxMbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	mbr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), ctxMbr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) reject(ctx echo.Context) error {
	ctxMbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	var data RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}

	mbr, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), ctxMbr, core.CleanString(data.Reason))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) uploadPicture(ctx echo.Context) error {
	ctxMbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	fh, err := ctx.FormFile("picture")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "picture", Error: errPictureMissing})
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := pictureAllowedExts[ext]; !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "picture", Error: errPictureBadFormat})
	}

	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded picture")
	}
	defer func() { _ = src.Close() }()

	dir := filepath.Join(api.conf.WorkDir, pictureUploadSubPath)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating pictures dir")
	}
	dst, err := os.Create(filepath.Join(dir, ctxMbr.ID+ext))
	if err != nil {
		return errors.Wrap(err, "creating picture file")
	}
	defer func() { _ = dst.Close() }()
	if _, err = io.Copy(dst, src); err != nil {
		return errors.Wrap(err, "saving picture file")
	}

	mbr, err := api.svc.MarkPictureUploaded(ctx.Request().Context(), ctxMbr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mbr)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	RejectRequest struct {
		Reason string `json:"reason"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	return validate.Struct(lr)
}
