package main

import (
	"github.com/joeydtaylor/steeze-bearer/pkg/serverfx"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		serverfx.Module(serverfx.WithService("bearer-proxy")),
	).Run()
}
