package rbac

// Default policy for the no-penalty read API.
var RolePermissions = map[string][]string{
	"student": {
		"nopenalty:view-own",
	},
	"teacher": {
		"nopenalty:view-own",
		"nopenalty:view-all",
	},
	"admin": {
		"*", // everything
	},
}
