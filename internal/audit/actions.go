package audit

// Actions recorded by the registry. Resource is always ResourceUser.
const (
	ActionRegister          = "register"
	ActionLogin             = "login"
	ActionRequestAccessCode = "request_access_code"
	ActionImport            = "import"
	ActionClear             = "clear"

	ResourceUser = "user"
)
