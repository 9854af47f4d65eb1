package main

import "duet-backup/cmd"

func main() {
	cmd.Execute()
}
