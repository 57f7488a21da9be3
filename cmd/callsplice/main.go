package main

import (
	"context"
	"log"

	"github.com/PatchLens/go-callsite-splice/splice"
	"github.com/PatchLens/go-callsite-splice/splice/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags)

	config, err := cmd.ParseFlags(nil) // No custom flags for patching
	if err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}

	if err := splice.NewEngine(config).Run(context.Background()); err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}
}
