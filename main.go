/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/Gerardinho-server/GestionUsuarios/cmd"

func main() {
	cmd.Execute()
}
