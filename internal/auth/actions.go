package auth

// Objects named in the route permission table.
const (
	ObjectProfile   = "profile"
	ObjectFavorites = "favorites"
	ObjectUsers     = "users"
	ObjectConsole   = "console"
)

// Actions named in the route permission table.
const (
	ActionRead    = "read"
	ActionUpdate  = "update"
	ActionWrite   = "write"
	ActionList    = "list"
	ActionSetRole = "set-role"
)
