// Package tools contains small example tools that are useful for trying out
// workflows and for tests: an arithmetic calculator and a mock weather
// lookup.
//
//	tools := api.MustRegistry(tools.NewCalculator(), tools.NewWeather())
package tools
