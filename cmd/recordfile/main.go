/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/recordfile/cmd/recordfile/cmd"

func main() {
	cmd.Execute()
}
