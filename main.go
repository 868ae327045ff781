package main

import "github.com/naka-gawa/team-pr-stats/cmd"

func main() {
	cmd.Execute()
}
