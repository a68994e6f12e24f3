package root

import (
	"github.com/zenGate-Global/retailops/apps/cli/cmd/auth"
	"github.com/zenGate-Global/retailops/apps/cli/cmd/bootstrap"
	lifecyclecmd "github.com/zenGate-Global/retailops/apps/cli/cmd/lifecycle"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(lifecyclecmd.CatalogCommand())
	Root().AddCommand(lifecyclecmd.ModulesCommand())
	Root().AddCommand(lifecyclecmd.ApprovalsCommand())
	Root().AddCommand(lifecyclecmd.StatsCommand())
}
