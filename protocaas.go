package main

import (
	"github.com/protocaas/protocaas/cmd"
	"github.com/protocaas/protocaas/pkg/env"
	"github.com/protocaas/protocaas/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("protocaas failure", "error", err)
	}
}
