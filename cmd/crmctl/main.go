// Command crmctl exercises the CRM access layer from a terminal.
//
//	crmctl list jobs --page 2 --size 10 --location stamford
//	crmctl health
//	crmctl watch --interval 5s
//
// Configuration is read from crmctl.yaml and CRMCTL_* environment
// variables, e.g. CRMCTL_CRM_BASE_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const serviceName = "crmctl"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
