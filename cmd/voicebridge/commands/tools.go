package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/voicebridge/cmd/voicebridge/internal/config"
	"github.com/veridian-labs/voicebridge/pkg/actions"
)

var flagToolSchemas bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the business actions offered to the model",
	Long: `List the business actions the configured deployment registers.

Actions whose backend is not configured are omitted, which is also
what the model would see at call time.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&flagToolSchemas, "schemas", false, "print JSON parameter schemas")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	reg := actions.NewRegistry()
	actions.RegisterStandard(reg, &actions.StandardActions{
		Directory: actions.NewMemoryDirectory(),
		Messenger: &actions.LogMessenger{},
		Scheduler: &actions.LogScheduler{},
		PortalURL: cfg.Actions.PortalURL,
	})
	defs := reg.List()

	if flagToolSchemas {
		for _, d := range defs {
			schema, err := json.MarshalIndent(d.Schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode schema for %s: %w", d.Name, err)
			}
			fmt.Printf("# %s\n%s\n\n", d.Name, schema)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREQUIRED\tOPTIONAL\tDESCRIPTION")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.Name,
			strings.Join(d.Required, ","),
			strings.Join(d.Optional, ","),
			d.Description,
		)
	}
	return w.Flush()
}
