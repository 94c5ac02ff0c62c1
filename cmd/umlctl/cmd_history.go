// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// historyView is one history row in structured output.
type historyView struct {
	ID        string    `json:"id" yaml:"id"`
	FileName  string    `json:"fileName" yaml:"fileName"`
	Language  string    `json:"language" yaml:"language"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	ImageURL  string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	PlantUML  string    `json:"plantUML" yaml:"plantUML"`
}

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or delete saved conversions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your saved conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.client().History(cmd.Context())
			if err != nil {
				return err
			}
			if a.output != FormatText {
				views := make([]historyView, len(recs))
				for i, r := range recs {
					views[i] = historyView{
						ID: r.ID, FileName: r.FileName, Language: r.Language,
						CreatedAt: r.CreatedAt, ImageURL: r.ImageURL, PlantUML: r.PlantUML,
					}
				}
				return writeStructured(a.stdout, a.output, views)
			}
			if len(recs) == 0 {
				a.printer.Info("No history yet.")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(a.stdout, "%s  %s  %-10s %-24s %s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Language, r.FileName, truncate(r.PlantUML, 40))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved conversion and its stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteHistory(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer.Success("Deleted " + args[0])
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
