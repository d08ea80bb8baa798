// Code scaffolded by goctl. Safe to edit.
package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/auth-core/internal/config"
	"github.com/suleymanmyradov/auth-core/internal/handler"
	"github.com/suleymanmyradov/auth-core/internal/svc"
)

var configFile = flag.String("f", "etc/authservice.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	httpx.SetErrorHandlerCtx(handler.ErrorHandler)

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	ctx := svc.NewServiceContext(c)
	defer ctx.Audit.Close()
	handler.RegisterHandlers(server, ctx)

	fmt.Printf("Starting auth-core at %s:%d...\n", c.Host, c.Port)
	server.Start()
}
