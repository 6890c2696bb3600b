package main

import "github.com/nfriedli/bitbucket-stats/cmd"

func main() {
	cmd.Execute()
}
