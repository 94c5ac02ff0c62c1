// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command umlctl converts UML class diagram images to PlantUML and source
// code through a running umlserver.
//
// # Usage
//
//	umlctl models
//	umlctl convert diagram.png --model gemini-2.0-flash --lang python --out model.py
//	umlctl render diagram.puml
//	umlctl render --decode SyfFKj2rKt3CoKnELR1Io4ZDoSa70000
//	umlctl transpile diagram.puml --lang kotlin
//	umlctl history list
//	umlctl history delete <id>
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(CLIExitError)
	}
}
