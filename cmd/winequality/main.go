// Command winequality trains an ElasticNet model on the wine quality dataset
// and records the run in an MLflow-compatible tracking backend.
//
// Usage:
//
//	winequality [alpha [l1_ratio]]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/winequality/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.GetLogger().Error("winequality failed", log.ErrAttrKey, err)
		os.Exit(1)
	}
}
