//go:build tinygo

package main

import (
	"github.com/joeycumines/logiface"

	"ember/app"
	"ember/hal"
)

func main() {
	h := hal.New()
	err := app.Run(h, app.Config{Demo: "all", Seed: 1, LogLevel: logiface.LevelInformational})
	if l := h.Logger(); l != nil && err != nil {
		l.WriteLineString(err.Error())
	}
	select {}
}
