package main

import (
	"utmbindex-backend/cmd/utmb-cli/commands"
	"utmbindex-backend/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
