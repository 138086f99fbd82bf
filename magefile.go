//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Build

// Build compiles the project binaries into the bin/ directory.
func Build() error {
	fmt.Println("Building...")
	return sh.Run("go", "build", "-o", "./bin", "./...")
}

// Install copies the mince binary to /usr/local/bin.
func Install() error {
	mg.Deps(Build)
	fmt.Println("Installing...")
	return sh.Run("cp", "bin/mince", "/usr/local/bin/mince")
}

// Test runs all tests in the project with verbose output.
func Test() error {
	fmt.Println("Running Tests...")
	return sh.Run("go", "test", "-v", "./...")
}

// TestRunner runs the end-to-end runner tests.
func TestRunner() error {
	fmt.Println("Running Runner Tests...")
	return sh.Run("go", "test", "-test.fullpath=true", "-timeout", "60s", "-run", "^TestRun", "github.com/darianmavgo/mince/runner")
}

// Example writes an example run file to example.hcl.
func Example() error {
	mg.Deps(Build)
	fmt.Println("Writing example.hcl...")
	return sh.Run("./bin/mince", "--init", "example.hcl")
}

// Clean removes the bin directory and the outputs of the example run.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	if err := os.RemoveAll("work"); err != nil {
		return err
	}
	return os.RemoveAll("reports")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Check runs formatting and linting checks (fmt, vet).
func Check() error {
	mg.Deps(Fmt, Vet)
	return nil
}

// Fmt runs go fmt ./...
func Fmt() error {
	fmt.Println("Running go fmt...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet ./...
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}
