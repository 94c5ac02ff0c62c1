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
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianUML/pkg/client"
	"github.com/AleutianAI/AleutianUML/pkg/logging"
	"github.com/AleutianAI/AleutianUML/pkg/pipeline"
	"github.com/AleutianAI/AleutianUML/pkg/plantuml"
	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
	"github.com/AleutianAI/AleutianUML/pkg/ux"
)

const defaultServer = "http://localhost:3001"

// app holds the global flags and the writers every command uses.
type app struct {
	stdout io.Writer
	stderr io.Writer

	server  string
	token   string
	output  string
	timeout time.Duration
	verbose bool

	printer *ux.Printer
	logger  *slog.Logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newRootCmd builds the command tree writing to stdout and stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:          "umlctl",
		Short:        "Convert UML class diagram images to PlantUML and code",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(a.output); err != nil {
				return err
			}
			level := logging.LevelWarn
			if a.verbose {
				level = logging.LevelDebug
			}
			a.logger = logging.New(logging.Config{Level: level, Service: "umlctl", Writer: a.stderr}).Slog()
			if f, ok := a.stderr.(*os.File); ok {
				a.printer = ux.NewPrinter(f)
			} else {
				a.printer = ux.NewPlainPrinter(a.stderr)
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.server, "server", envOr("UMLCTL_SERVER", defaultServer), "umlserver base URL (env UMLCTL_SERVER)")
	pf.StringVar(&a.token, "token", os.Getenv("UMLCTL_TOKEN"), "bearer token for history calls (env UMLCTL_TOKEN)")
	pf.StringVarP(&a.output, "output", "o", FormatText, "output format: text, json or yaml")
	pf.DurationVar(&a.timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.modelsCmd(),
		a.convertCmd(),
		a.renderCmd(),
		a.transpileCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) client() *client.Client {
	return client.New(a.server,
		client.WithToken(a.token),
		client.WithHTTPClient(&http.Client{Timeout: a.timeout}),
	)
}

// ===== models =====

func (a *app) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the server can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models := pipeline.ListAvailableModels(cmd.Context(), a.client(), a.logger)
			if a.output != FormatText {
				return writeStructured(a.stdout, a.output, models)
			}
			for _, m := range models {
				fmt.Fprintf(a.stdout, "%-40s %-20s %s\n", m.ID, m.Name, m.Provider)
			}
			return nil
		},
	}
}

// ===== render =====

func (a *app) renderCmd() *cobra.Command {
	var (
		decode  bool
		baseURL string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "render <file.puml | ->",
		Short: "Print the PlantUML render URL for a diagram",
		Long: `Print the URL that renders a PlantUML diagram on the public server.
With --decode the argument is an encoded diagram (or a render URL) and the
PlantUML text is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if decode {
				encoded := args[0]
				if i := strings.LastIndex(encoded, "/"); i >= 0 {
					encoded = encoded[i+1:]
				}
				text, err := plantuml.Decode(encoded)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, text)
				return nil
			}
			text, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			url := plantuml.Renderer{BaseURL: baseURL, Format: format}.Render(text)
			if url == "" {
				return transpiler.ErrEmptyInput
			}
			fmt.Fprintln(a.stdout, url)
			return nil
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "decode an encoded diagram instead")
	cmd.Flags().StringVar(&baseURL, "base-url", plantuml.DefaultBaseURL, "rendering server")
	cmd.Flags().StringVar(&format, "format", plantuml.DefaultFormat, "output format: svg, png or txt")
	return cmd
}

// ===== transpile =====

func (a *app) transpileCmd() *cobra.Command {
	var (
		lang  string
		fence bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "transpile <file.puml | ->",
		Short: "Generate source code from a PlantUML class diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := transpiler.ParseLanguage(lang)
			if err != nil {
				return err
			}
			text, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			code, err := transpiler.Transpile(plantuml.Normalize(text), target)
			if err != nil {
				return err
			}
			if fence {
				code = transpiler.Fence(code, target)
			}
			if out != "" {
				if err := os.WriteFile(out, []byte(code+"\n"), 0o644); err != nil {
					return err
				}
				a.printer.Success("Wrote " + out)
				return nil
			}
			fmt.Fprintln(a.stdout, code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", string(transpiler.DefaultLanguage), "target language: "+languageList())
	cmd.Flags().BoolVar(&fence, "fence", false, "wrap output in a markdown code block")
	cmd.Flags().StringVar(&out, "out", "", "write code to this file")
	return cmd
}

func languageList() string {
	langs := transpiler.Languages()
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// readSource reads a file, or stdin when name is "-".
func readSource(name string, stdin io.Reader) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}
