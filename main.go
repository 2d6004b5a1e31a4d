/*
Copyright © 2026 JACOB ARTHURS
*/
package main

import "github.com/jacobarthurs/queryinsight/cmd"

func main() {
	cmd.Execute()
}
