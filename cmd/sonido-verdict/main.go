// sonido-verdict is a local audio classification service.
//
// Usage:
//
//	sonido-verdict serve                      # answer init/predict/train requests
//	sonido-verdict train ./dataset -e 50      # train without the service
//	sonido-verdict predict clip.wav           # classify one clip
//	sonido-verdict send 'predict@3@model.h5'  # send a raw request to a running service
//	sonido-verdict runs                       # list recorded training runs
//
// State lives in ~/.sonido-verdict/ unless --root says otherwise.
package main

import (
	"os"

	"github.com/RyanBlaney/sonido-verdict/cmd/sonido-verdict/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
