package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/internal/app"
	"github.com/magiconsole/magi/internal/observability"
	"github.com/magiconsole/magi/meter"
)

var askFirst bool

var askCmd = &cobra.Command{
	Use:   "ask [text...]",
	Short: "Send one chat turn through the response chain",
	Long: `Send one chat turn through the same Primary, Secondary, Local chain the
chat endpoint uses and print the reply. Providers without an API key are
skipped, so with no keys set the local responder answers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Keep stdout for the reply.
		logger, err := observability.NewLogger("debug", "console")
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		profiles := magi.StaticProfile(magi.DefaultProfile())
		if cfg.Profile.Path != "" {
			p, err := magi.LoadProfile(cfg.Profile.Path)
			if err != nil {
				return err
			}
			profiles = magi.StaticProfile(p)
		}

		var m magi.Meter = &meter.NoopMeter{}
		if verbose {
			m = meter.NewLogMeter(logger)
		}
		pipeline, err := app.BuildPipeline(cfg, profiles, magi.WithMeter(m))
		if err != nil {
			return err
		}

		reply := pipeline.Respond(background(cmd), magi.Query{
			Text:        strings.Join(args, " "),
			IsFirstTurn: askFirst,
		})

		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "source=%s attempts=%d\n", reply.Source, reply.Attempts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askFirst, "first", false, "treat the text as the first turn of a session")
}
