package logic

import (
	"context"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/auth-core/internal/svc"
	"github.com/suleymanmyradov/auth-core/internal/types"
)

type LoginLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
	req    *http.Request
}

func NewLoginLogic(ctx context.Context, svcCtx *svc.ServiceContext, req *http.Request) *LoginLogic {
	return &LoginLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
		req:    req,
	}
}

func (l *LoginLogic) Login(req *types.LoginRequest) (*types.LoginResponse, error) {
	ip := l.svcCtx.IPResolver.Resolve(l.req)
	key := l.svcCtx.KeyResolver.Key(ip, req.Username)

	pair, err := l.svcCtx.LoginUseCase.Login(l.ctx, key, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	return &types.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		AccessExpiry: pair.AccessExpiry,
	}, nil
}
