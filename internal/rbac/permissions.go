package rbac

import "muhasebe-platform/internal/tenant"

// Permission strings gate fine-grained actions beyond coarse role checks.
// Keep these stable; routes reference them by value.
const (
	PermInvoicesRead   = "invoices:read"
	PermInvoicesManage = "invoices:manage"
	PermTaxRead        = "tax:read"
	PermTaxManage      = "tax:manage"
	PermReportsRead    = "reports:read"
	PermRiskAlertsRead = "riskalerts:read"
	PermMembersRead    = "members:read"
	PermMembersManage  = "members:manage"
	PermSettingsManage = "settings:manage"
	PermAssistantUse   = "assistant:use"
)

// Platform-level roles carried in token claims, independent of any tenant.
const (
	PlatformAdmin   = "platform_admin"
	PlatformSupport = "platform_support"
)

// rolePermissions is the static role→permission table. Resolving a grant is a
// pure lookup; no database round-trip.
var rolePermissions = map[tenant.Role]map[string]struct{}{
	tenant.RoleOwner: permSet(
		PermInvoicesRead, PermInvoicesManage,
		PermTaxRead, PermTaxManage,
		PermReportsRead, PermRiskAlertsRead,
		PermMembersRead, PermMembersManage,
		PermSettingsManage, PermAssistantUse,
	),
	tenant.RoleAccountant: permSet(
		PermInvoicesRead, PermInvoicesManage,
		PermTaxRead, PermTaxManage,
		PermReportsRead, PermRiskAlertsRead,
		PermMembersRead, PermAssistantUse,
	),
	tenant.RoleStaff: permSet(
		PermInvoicesRead, PermInvoicesManage,
		PermTaxRead, PermReportsRead,
		PermAssistantUse,
	),
	tenant.RoleReadOnly: permSet(
		PermInvoicesRead, PermTaxRead,
		PermReportsRead, PermRiskAlertsRead,
	),
}

func permSet(perms ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// RoleHasPermission resolves (role, permission) against the static table.
func RoleHasPermission(role tenant.Role, permission string) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

// PermissionsForRole lists a role's grants (for the members UI).
func PermissionsForRole(role tenant.Role) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	return out
}
