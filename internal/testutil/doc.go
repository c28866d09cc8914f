// Package testutil holds helpers shared by the package tests: golden file
// comparison and loggers that either discard or capture writer logs.
package testutil
