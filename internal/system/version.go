package system

import "fmt"

var Name = "appgw-provisioner"
var Version = "<unset>"
var Commit = "<unset>"
var Repository = "https://github.com/telekom/appgw-provisioner"

func PrettyInfo() string {
	return fmt.Sprintf(`
===========================================================================
Application: %s
Version %s
GOTO: %s/tree/%s
===========================================================================
`, Name, Version, Repository, Commit)
}
