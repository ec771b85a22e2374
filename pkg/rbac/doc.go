// Package rbac defines the closed set of account roles and the capabilities
// they grant.
//
// Every Capability maps to a RoleSet in one table, and Allows answers by set
// membership. Capabilities or roles outside that table are always denied, so
// adding a role requires touching the table rather than scattered string
// comparisons.
//
//	if err := rbac.CapabilityManageCompany.Check(user.Role); err != nil {
//	    // 403
//	}
package rbac
