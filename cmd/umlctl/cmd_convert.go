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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianUML/pkg/client"
	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/pkg/pipeline"
	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
	"github.com/AleutianAI/AleutianUML/pkg/ux"
)

// cliUser marks the session as signed in. The server maps the bearer
// token to the real user.
const cliUser = "cli"

type convertOptions struct {
	model  string
	pick   bool
	lang   string
	out    string
	save   bool
	noCode bool
}

func (a *app) convertCmd() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert a class diagram image to PlantUML and source code",
		Long: `Validate an image, extract PlantUML with a vision model, print the render
URL, and transpile the diagram to the target language.

In text mode the generated code (or the PlantUML with --no-code) goes to
stdout and progress goes to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.model, "model", "m", "", "model id (default: first model the server offers)")
	f.BoolVar(&opts.pick, "pick", false, "choose the model interactively")
	f.StringVarP(&opts.lang, "lang", "l", string(transpiler.DefaultLanguage), "target language: "+languageList())
	f.StringVar(&opts.out, "out", "", "write the generated code to this file")
	f.BoolVar(&opts.save, "save", false, "save the result to history (needs --token)")
	f.BoolVar(&opts.noCode, "no-code", false, "stop after PlantUML extraction")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, path string, opts convertOptions) error {
	ctx := cmd.Context()
	lang, err := transpiler.ParseLanguage(opts.lang)
	if err != nil {
		return err
	}
	if opts.save && a.token == "" {
		return errors.New("--save needs a token (--token or UMLCTL_TOKEN)")
	}
	img, err := imaging.FromFile(path)
	if err != nil {
		return err
	}

	c := a.client()
	model, err := a.chooseModel(cmd, c, opts)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		Validator: pipeline.NewValidator(c, a.logger),
		Extractor: &pipeline.Extractor{Processor: c},
		Model:     model,
		Language:  lang,
		Logger:    a.logger,
	}
	if opts.save {
		cfg.History = c
	}
	o := pipeline.New(cfg)
	if opts.save {
		o.SetUser(cliUser)
	}

	spin := a.printer.NewSpinner(fmt.Sprintf("Converting %s with %s", img.Name, model))
	spin.Start()
	err = o.Upload(ctx, img)
	spin.Stop()
	if errors.Is(err, pipeline.ErrRejected) {
		a.printer.Warning("The image does not look like a UML class diagram. Try another image.")
	}
	if err != nil {
		return err
	}
	a.printer.Success("Extracted PlantUML from " + img.Name)

	if !opts.noCode {
		if err := o.Generate(ctx); err != nil {
			return err
		}
	}
	s := o.Snapshot()

	code := transpiler.Unfence(s.GeneratedCodeText)
	if opts.out != "" && code != "" {
		if err := os.WriteFile(opts.out, []byte(code+"\n"), 0o644); err != nil {
			return err
		}
	}

	if a.output != FormatText {
		res := ConvertResult{
			File:      img.Name,
			Model:     s.SelectedModelID,
			Language:  string(s.TargetLanguage),
			PlantUML:  s.PlantUMLText,
			RenderURL: s.RenderURL,
			Code:      code,
			Output:    opts.out,
		}
		return writeStructured(a.stdout, a.output, res)
	}

	a.printer.KeyValue("Render", s.RenderURL)
	switch {
	case opts.noCode:
		fmt.Fprintln(a.stdout, s.PlantUMLText)
	case opts.out != "":
		a.printer.Success("Wrote " + opts.out)
	default:
		fmt.Fprintln(a.stdout, code)
	}
	return nil
}

// chooseModel resolves --model, --pick, or the server's first model.
func (a *app) chooseModel(cmd *cobra.Command, c *client.Client, opts convertOptions) (string, error) {
	if opts.model != "" && !opts.pick {
		return opts.model, nil
	}
	models := pipeline.ListAvailableModels(cmd.Context(), c, a.logger)
	if !opts.pick {
		return models[0].ID, nil
	}

	choices := make([]ux.Choice, len(models))
	for i, m := range models {
		choices[i] = ux.Choice{Label: fmt.Sprintf("%s (%s)", m.Name, m.Provider), Value: m.ID}
	}
	selected := opts.model
	if selected == "" {
		selected = models[0].ID
	}
	if err := ux.Select("Model", choices, &selected); err != nil {
		return "", fmt.Errorf("pick model: %w", err)
	}
	return selected, nil
}
