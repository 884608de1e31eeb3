// Package fakes provides in-memory implementations of the circulation engine
// dependencies for unit testing. All fakes are safe for concurrent use and
// support failure injection for exercising compensation paths.
package fakes
