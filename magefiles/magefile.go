//go:build mage

// Package main provides build targets for the pantry project using Mage.
//
// Usage:
//
//	mage build          Compile the pantry binary to bin/
//	mage test:all       Run all tests
//	mage test:short     Run tests with -short
//	mage test:cover     Run tests with a coverage profile
//	mage test:golden    Regenerate golden files
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install pantry to GOPATH/bin
//	mage stats          Print Go LOC per package
package main
