// +build mage

package main

import (
	"log"
	"os"
	"path"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Project directory tree. Values populated by initPaths().
var (
	MageRoot string // location of this file
	GoRoot   string // path to go installation
)

func initPaths() {
	must := func(_err error) {
		if _err != nil {
			log.Fatal(_err)
		}
	}
	var err error
	GoRoot, err = sh.Output("go", "env", "GOROOT")
	must(err)
	MageRoot, err = os.Getwd()
	must(err)
}

var Default = Build

func Build() {
	initPaths()
	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}
	must(sh.Run("go", "build", "-o", path.Join(MageRoot, "midipipe"), "./cmd/midipipe"))
}

func Test() {
	initPaths()
	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}
	must(sh.Run("go", "test", "./..."))
}

func Vet() {
	initPaths()
	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}
	must(sh.Run("go", "vet", "./..."))
}

func Run() {
	mg.Deps(Build)
	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}
	must(sh.Run(path.Join(MageRoot, "midipipe")))
}

func Clean() {
	initPaths()
	os.Remove(path.Join(MageRoot, "midipipe"))
}
