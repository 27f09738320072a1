package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/dmorgan81/imagestudio/internal/handler"
	"github.com/dmorgan81/imagestudio/internal/inject"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/dmorgan81/imagestudio/internal/model"
	"github.com/dmorgan81/imagestudio/internal/view"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var ErrGenerationFailed = errors.New("generation failed")

type contextKey struct{}

func handlerFrom(cmd *cobra.Command) *handler.Handler {
	return cmd.Context().Value(contextKey{}).(*handler.Handler)
}

func GenerateHandler(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	in := handler.Input{Action: handler.Generate}
	in.Prompt, _ = flags.GetString("prompt")
	in.Model, _ = flags.GetString("model")
	in.Aspect, _ = flags.GetString("aspect")
	in.Count, _ = flags.GetInt("count")
	in.APIKey, _ = flags.GetString("api-key")
	in.Session, _ = flags.GetString("session")
	in.AllOrNothing, _ = flags.GetBool("all-or-nothing")

	out, err := handlerFrom(cmd).Handle(cmd.Context(), in)
	if err != nil {
		return err
	}

	printView(cmd.OutOrStdout(), out)
	if out.View.State == view.Error {
		return ErrGenerationFailed
	}
	return nil
}

func printView(w io.Writer, out handler.Output) {
	v := out.View
	fmt.Fprintln(w, out.Status)
	for _, item := range v.Items {
		fmt.Fprintf(w, "  Image %d: %s\n", item.Index, item.URL)
	}
	if v.Error != nil {
		fmt.Fprintf(w, "Error: %s\n", v.Error.Message)
		fmt.Fprintf(w, "Recommendation: Try using %s - it's the most reliable model.\n", v.Error.Recommended)
		fmt.Fprintln(w, "Common solutions:")
		for _, tip := range v.Error.Remediation {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
	fmt.Fprintf(w, "Page: %s\n", out.Page)
}

func keyHandler(action handler.Action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		out, err := handlerFrom(cmd).Handle(cmd.Context(), handler.Input{
			Action: action,
			APIKey: strings.Join(args, ""),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Status)
		return nil
	}
}

func ModelsHandler(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	models := lo.Map(model.Catalog, func(m model.Model, _ int) []string {
		return []string{m.ID, m.Name, m.Description, lo.Ternary(m == model.Default, "*", "")}
	})
	writeTable(w, []string{"ID", "NAME", "NOTES", "DEFAULT"}, models)
	fmt.Fprintln(w)

	aspects := lo.Map(model.Aspects, func(a model.Aspect, _ int) []string {
		return []string{a.Token, a.Label, lo.Ternary(a == model.DefaultAspect, "*", "")}
	})
	writeTable(w, []string{"ASPECT", "LABEL", "DEFAULT"}, aspects)
	return nil
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

func NewCLI(buildKey string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studio",
		Short:         "Generate images from text prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			level, _ := flags.GetString("log-level")
			outDir, _ := flags.GetString("out")
			settings, _ := flags.GetString("settings")
			if settings == "" {
				path, err := credential.DefaultPath()
				if err != nil {
					return err
				}
				settings = path
			}

			ctx := log.NewContext(cmd.Context(), log.New(cmd.ErrOrStderr(), log.ParseLevel(level)))
			injector := inject.Local(ctx, buildKey, settings, outDir)
			h, err := do.Invoke[*handler.Handler](injector)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(ctx, contextKey{}, h))
			return nil
		},
	}
	rootCmd.PersistentFlags().String("out", "studio-out", "Directory generated images are written to")
	rootCmd.PersistentFlags().String("settings", "", "Settings file holding the saved API key")
	rootCmd.PersistentFlags().String("log-level", lo.Ternary(os.Getenv("LOG_LEVEL") != "", os.Getenv("LOG_LEVEL"), "warn"), "Log level (debug, info, warn, error)")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate images for a prompt",
		Args:  cobra.NoArgs,
		RunE:  GenerateHandler,
	}
	generateCmd.Flags().StringP("prompt", "p", "", "Description of the image")
	generateCmd.Flags().StringP("model", "m", model.Default.ID, "Model to generate with")
	generateCmd.Flags().StringP("aspect", "a", model.DefaultAspect.Token, "Image size as WIDTHxHEIGHT")
	generateCmd.Flags().IntP("count", "n", 1, fmt.Sprintf("Number of images (1-%d)", handler.MaxCount))
	generateCmd.Flags().String("api-key", "", "Hugging Face API key for this run")
	generateCmd.Flags().String("session", "default", "Session whose previous images are replaced")
	generateCmd.Flags().Bool("all-or-nothing", false, "Discard every image when any of them fails")
	_ = generateCmd.MarkFlagRequired("prompt")

	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the saved API key",
	}
	keyCmd.AddCommand(
		&cobra.Command{
			Use:   "save KEY",
			Short: "Save an API key for later runs",
			Args:  cobra.ExactArgs(1),
			RunE:  keyHandler(handler.SaveKey),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the saved API key",
			Args:  cobra.NoArgs,
			RunE:  keyHandler(handler.ClearKey),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether an API key is saved",
			Args:  cobra.NoArgs,
			RunE:  keyHandler(handler.KeyStatus),
		},
	)

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List models and aspect ratios",
		Args:  cobra.NoArgs,
		RunE:  ModelsHandler,
	}

	rootCmd.AddCommand(generateCmd, keyCmd, modelsCmd)
	return rootCmd
}
