package main

import (
	"log"

	"github.com/PatchLens/go-callsite-splice/splice"
	"github.com/PatchLens/go-callsite-splice/splice/cmd"
)

const (
	forceFlag = "force"
	allFlag   = "all"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	config, err := cmd.ParseFlags([]cmd.CustomFlag{{
		Name:         forceFlag,
		DefaultValue: false,
		Usage:        "Restore even if the file was edited after patching",
		Type:         "bool",
	}, {
		Name:         allFlag,
		DefaultValue: false,
		Usage:        "Restore every snapshotted file (default when no files are listed)",
		Type:         "bool",
	}})
	if err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}
	config.RestoreAll = config.CustomFlags[allFlag] == "true" || config.FilesFlag == ""

	if err := splice.NewEngine(config).Restore(config.CustomFlags[forceFlag] == "true"); err != nil {
		log.Fatalf("%sFailed to restore: %v", splice.ErrorLogPrefix, err)
	}
	log.Println("Restore completed")
}
