/*
Copyright © 2026 Deutsche Telekom AG
*/
package main

import "github.com/telekom/appgw-provisioner/cmd"

func main() {
	cmd.Execute()
}
