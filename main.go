package main

import "github.com/angosms/sms-gateway/cmd"

func main() {
	cmd.Execute()
}
