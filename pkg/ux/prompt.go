// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned by Select when stdin is not a terminal.
var ErrNotInteractive = errors.New("not an interactive terminal")

// Choice is one selectable option.
type Choice struct {
	Label string
	Value string
}

// Select asks the user to pick one of choices. value holds the initial
// selection and receives the answer.
func Select(title string, choices []Choice, value *string) error {
	if !IsTerminal(os.Stdin) {
		return ErrNotInteractive
	}
	opts := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		opts[i] = huh.NewOption(c.Label, c.Value)
	}
	return huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(value).
		Run()
}
