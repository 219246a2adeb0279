package rbac

// Default policy for the authoring gateway.
var RolePermissions = map[string][]string{
	"teacher": {
		"question:generate",
		"question:export",
		"question:save",
		"workspace:*",
		"paper:assemble",
		"paper:create",
		"paper:view",
		"paper:publish",
		"paper:delete_own",
		"stats:view",
		"user:change_password",
	},
	"reviewer": {
		"paper:view",
		"paper:view_all",
		"stats:view",
	},
	// machine clients of the paper/question service
	"service": {
		"paper:*",
		"question:save",
	},
	"admin": {
		"*", // everything
	},
}
