package main

import "github.com/lu-zhengda/mailtriage/internal/cli"

func main() {
	cli.Execute()
}
