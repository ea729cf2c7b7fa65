package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kb-auditor/internal/app"
	"kb-auditor/internal/events"
	"kb-auditor/internal/payload"
	"kb-auditor/internal/prompt"
	"kb-auditor/internal/render"
	"kb-auditor/internal/workbench"
)

// builder constructs the CLI dependencies. Tests swap it for mocks.
type builder func(ctx context.Context, opts app.CLIOptions) (app.CLIDeps, error)

func defaultBuilder(ctx context.Context, opts app.CLIOptions) (app.CLIDeps, error) {
	return app.BuildCLI(ctx, opts)
}

type globalFlags struct {
	model  string
	server string
	html   bool
}

func newRootCommand(build builder) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "kbaudit",
		Short:         "Audit DOCX to XML conversions against a knowledge base of rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().StringVarP(&flags.model, "model", "m", "", "model identifier (default from DEFAULT_MODEL)")
	rootCmd.PersistentFlags().StringVarP(&flags.server, "server", "s", "", "base URL of a kb-auditor server for the knowledge base and the OpenAI relay")
	rootCmd.PersistentFlags().BoolVar(&flags.html, "html", false, "print results as HTML instead of Markdown")

	rootCmd.AddCommand(
		newAuditCommand(build, &flags),
		newIngestCommand(build, &flags),
		newUpdateCommand(build, &flags),
		newKBCommand(build, &flags),
	)
	return rootCmd
}

func newAuditCommand(build builder, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "audit FILE...",
		Short: "Audit DOCX/XML pairs matched by file name",
		Long: "Pairs each .docx or .doc file with the .xml file sharing its name and audits every " +
			"complete pair against the knowledge base. Other files and unmatched halves are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, build, flags, func(deps app.CLIDeps) error {
				files, err := readFiles(args)
				if err != nil {
					return err
				}
				deps.Workbench.AddFiles(files...)

				snap := deps.Workbench.Snapshot()
				for _, p := range snap.Pairs {
					if !p.Ready {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %s\n", p.Stem, missingHalf(p))
					}
				}
				if !snap.Triggers[prompt.ModeAudit] {
					return fmt.Errorf("no complete DOCX/XML pair among %d file(s)", len(args))
				}
				return run(cmd, deps, flags, workbench.RunRequest{Mode: prompt.ModeAudit})
			})
		},
	}
}

func newIngestCommand(build builder, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE",
		Short: "Propose knowledge base rules from a reference .xml or .txt file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, build, flags, func(deps app.CLIDeps) error {
				files, err := readFiles(args)
				if err != nil {
					return err
				}
				if err := deps.Workbench.SetReference(files[0]); err != nil {
					return err
				}
				return run(cmd, deps, flags, workbench.RunRequest{Mode: prompt.ModeIngest})
			})
		},
	}
}

func newUpdateCommand(build builder, flags *globalFlags) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "update INSTRUCTION...",
		Short: "Ask the model to rewrite the knowledge base",
		Long: "Sends the instruction with the current knowledge base and prints the rewritten document. " +
			"With --apply the result replaces the knowledge base.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, build, flags, func(deps app.CLIDeps) error {
				req := workbench.RunRequest{
					Mode:        prompt.ModeUpdate,
					Model:       flags.model,
					Instruction: strings.Join(args, " "),
				}
				if !apply {
					return run(cmd, deps, flags, req)
				}
				if _, err := deps.Workbench.Run(cmd.Context(), req); err != nil {
					return err
				}
				text, err := deps.Workbench.Apply(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "knowledge base updated (%d bytes)\n", len(text))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "replace the knowledge base with the result")
	return cmd
}

func newKBCommand(build builder, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Show or replace the knowledge base",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the knowledge base",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDeps(cmd, build, flags, func(deps app.CLIDeps) error {
					text, err := deps.KB.Load(cmd.Context())
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), text, flags.html)
				})
			},
		},
		&cobra.Command{
			Use:   "save FILE",
			Short: "Replace the knowledge base with the contents of FILE",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDeps(cmd, build, flags, func(deps app.CLIDeps) error {
					data, err := os.ReadFile(args[0])
					if err != nil {
						return err
					}
					if err := deps.KB.Save(cmd.Context(), string(data)); err != nil {
						return err
					}
					events.Emit(cmd.Context(), deps.Events, events.TypeKBSaved, events.KBPayload{Source: "cli", Bytes: len(data)}, func(err error) {
						deps.Log.Warn("failed to publish kb event", "err", err)
					})
					fmt.Fprintf(cmd.ErrOrStderr(), "knowledge base saved (%d bytes)\n", len(data))
					return nil
				})
			},
		},
	)
	return cmd
}

func withDeps(cmd *cobra.Command, build builder, flags *globalFlags, fn func(app.CLIDeps) error) error {
	deps, err := build(cmd.Context(), app.CLIOptions{Server: flags.server, Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to close dependencies", "err", err)
		}
	}()
	return fn(deps)
}

func run(cmd *cobra.Command, deps app.CLIDeps, flags *globalFlags, req workbench.RunRequest) error {
	if req.Model == "" {
		req.Model = flags.model
	}
	res, err := deps.Workbench.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res.Text, flags.html)
}

func printResult(w io.Writer, text string, html bool) error {
	if html {
		out, err := render.Markdown(text)
		if err != nil {
			return err
		}
		text = out
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

func readFiles(paths []string) ([]payload.File, error) {
	files := make([]payload.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, payload.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func missingHalf(p workbench.PairStatus) string {
	if p.Source == "" {
		return "no matching .docx"
	}
	return "no matching .xml"
}
