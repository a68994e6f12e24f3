package sqlassets

import _ "embed"

//go:embed schema/lifecycle/module_catalog.sql
var ModuleCatalogSQL string

//go:embed schema/lifecycle/module_assignments.sql
var ModuleAssignmentsSQL string

//go:embed schema/lifecycle/module_approval_requests.sql
var ModuleApprovalRequestsSQL string

//go:embed schema/lifecycle/module_status_history.sql
var ModuleStatusHistorySQL string

// Lifecycle lists the lifecycle DDL in dependency order.
func Lifecycle() []string {
	return []string{ModuleCatalogSQL, ModuleAssignmentsSQL, ModuleApprovalRequestsSQL, ModuleStatusHistorySQL}
}
