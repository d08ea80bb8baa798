package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/auth-core/internal/authz"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/svc"
	"github.com/suleymanmyradov/auth-core/internal/types"
)

type MeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewMeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *MeLogic {
	return &MeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *MeLogic) Me() (*types.MeResponse, error) {
	principal, ok := authz.FromContext(l.ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	return &types.MeResponse{
		UserID:   principal.UserID,
		Username: principal.Username,
		Roles:    principal.Roles,
		Scopes:   principal.Scopes,
	}, nil
}
