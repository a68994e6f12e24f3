package service

import (
	"context"
	"strings"
)

// PolicyResolver reads module policies from the catalog. It does not cache.
type PolicyResolver struct {
	catalog Catalog
}

// NewPolicyResolver constructs a resolver over the given catalog.
func NewPolicyResolver(catalog Catalog) *PolicyResolver {
	if catalog == nil {
		panic("module catalog is required")
	}
	return &PolicyResolver{catalog: catalog}
}

// Resolve returns the policy of moduleID or ErrModuleNotFound.
func (r *PolicyResolver) Resolve(ctx context.Context, moduleID string) (ModulePolicy, error) {
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return ModulePolicy{}, ErrModuleNotFound
	}

	module, err := r.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return ModulePolicy{}, wrapStoreErr("resolve module policy", err)
	}
	return policyFor(module), nil
}

// Module returns the raw catalog entry, for display enrichment.
func (r *PolicyResolver) Module(ctx context.Context, moduleID string) (CatalogModule, error) {
	module, err := r.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return CatalogModule{}, wrapStoreErr("get catalog module", err)
	}
	return module, nil
}

// AutoEnableCandidates lists policies of modules that should be assigned to a
// tenant without a request: all_tenants always, new_tenants only for new tenants.
func (r *PolicyResolver) AutoEnableCandidates(ctx context.Context, newTenant bool) ([]ModulePolicy, error) {
	modules, err := r.catalog.ListModules(ctx)
	if err != nil {
		return nil, wrapStoreErr("list catalog modules", err)
	}

	out := make([]ModulePolicy, 0, len(modules))
	for _, m := range modules {
		p := policyFor(m)
		switch p.AutoEnablePolicy {
		case AutoEnableAllTenants:
			out = append(out, p)
		case AutoEnableNewTenants:
			if newTenant {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// policyFor fills catalog gaps with the most conservative defaults.
func policyFor(m CatalogModule) ModulePolicy {
	p := ModulePolicy{
		ModuleID:         m.ID,
		Visibility:       m.Visibility,
		RequestPolicy:    m.RequestPolicy,
		AutoEnablePolicy: m.AutoEnablePolicy,
		Dependencies:     append([]string(nil), m.Dependencies...),
	}
	switch p.Visibility {
	case VisibilityPublic, VisibilityPrivate, VisibilityRestricted:
	default:
		p.Visibility = VisibilityPrivate
	}
	switch p.RequestPolicy {
	case RequestAutoApprove, RequestManualApproval, RequestDenyAll:
	default:
		p.RequestPolicy = RequestManualApproval
	}
	switch p.AutoEnablePolicy {
	case AutoEnableAllTenants, AutoEnableNewTenants, AutoEnableNone:
	default:
		p.AutoEnablePolicy = AutoEnableNone
	}
	return p
}
