package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core/member"
)

func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsStaff {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// ctxMemberOrStaffMiddleware makes detail endpoints available to the member
// themselves and to staff. The target member is stored under "object".
func ctxMemberOrStaffMiddleware(svc *member.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxMbr, err := getContextMember(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context member")
			}

			if ctx.Param("id") == ctxMbr.ID || ctxMbr.IsStaff {
				if mbr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", mbr)
					return next(ctx)
				} else if errors.Cause(err) != member.ErrNotFound {
					return errors.Wrap(err, "finding member by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// pictureDeadlineMiddleware locks out approved members who missed the picture
// upload deadline. Staff are exempt, as are the endpoints needed to fix the
// situation.
func pictureDeadlineMiddleware(svc *member.Service, exemptPaths ...string) echo.MiddlewareFunc {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, ok := exempt[ctx.Path()]; ok {
				return next(ctx)
			}
			mbr, err := getContextMember(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context member")
			}
			if !mbr.IsStaff && svc.IsPictureOverdue(mbr) {
				return errPictureOverdue
			}
			return next(ctx)
		}
	}
}
