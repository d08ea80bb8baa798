// Code scaffolded by goctl. Safe to edit.
package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"github.com/suleymanmyradov/auth-core/internal/svc"
)

func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes([]rest.Route{
		{
			Method:  http.MethodPost,
			Path:    "/auth/login",
			Handler: LoginHandler(svcCtx),
		},
		{
			Method:  http.MethodPost,
			Path:    "/auth/refresh",
			Handler: RefreshHandler(svcCtx),
		},
	})

	server.AddRoutes([]rest.Route{
		{
			Method:  http.MethodGet,
			Path:    "/auth/me",
			Handler: MeHandler(svcCtx),
		},
	}, rest.WithMiddlewares([]rest.Middleware{svcCtx.AuthzFilter.Handle}))
}
