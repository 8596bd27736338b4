package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ixurl.local/gee"
	"ixurl.local/internal/app/imgix/repo"
	"ixurl.local/internal/platform/auth"
)

type LoginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

func NewLoginHandler(operators OperatorStore, ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req LoginRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		dbctx, cancel := context.WithTimeout(ctx.Req.Context(), time.Second)
		defer cancel()
		op, err := operators.FindByUsername(dbctx, req.UserName)
		if err != nil {
			if errors.Is(err, repo.ErrOperatorNotFound) {
				ctx.AbortWithError(http.StatusUnauthorized, "invalid credentials")
				return
			}
			slog.Error("find operator failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		if !repo.CheckPassword(op.PasswordHash, req.Password) {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := ts.Sign(strconv.FormatInt(op.ID, 10), op.Role)
		if err != nil {
			slog.Error("sign token failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "sign failed")
			return
		}
		ctx.JSON(http.StatusOK, map[string]string{"token": token})
	}
}

type CreateOperatorRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type CreateOperatorResponse struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
	Role     string `json:"role"`
}

func NewCreateOperatorHandler(operators OperatorStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CreateOperatorRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		if req.Role == "" {
			req.Role = repo.RoleViewer
		}
		id, err := operators.Create(ctx.Req.Context(), req.UserName, req.Password, req.Role)
		if err != nil {
			switch {
			case errors.Is(err, repo.ErrOperatorExists):
				ctx.AbortWithError(http.StatusConflict, err.Error())
			case errors.Is(err, repo.ErrInvalidUsername), errors.Is(err, repo.ErrInvalidPassword), errors.Is(err, repo.ErrInvalidRole):
				ctx.AbortWithError(http.StatusBadRequest, err.Error())
			default:
				ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			}
			return
		}
		ctx.JSON(http.StatusCreated, CreateOperatorResponse{ID: id, UserName: req.UserName, Role: req.Role})
	}
}
