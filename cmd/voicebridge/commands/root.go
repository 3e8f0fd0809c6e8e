package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Phone-call bridge between a carrier media stream and a realtime AI backend",
	Long: `voicebridge - relay live phone audio to a conversational AI.

The server terminates carrier media-stream WebSockets, authenticates
each call against a shared secret and environment tag, and bridges
8 kHz μ-law audio to one of two upstream backends:

  realtime   generic realtime-model API (μ-law passthrough)
  evi        empathic voice-interface API (linear PCM, transcoded)

The backend also calls business actions mid-conversation (customer
lookup, callback scheduling, portal links); results flow back into the
same turn.

Examples:
  voicebridge serve --config voicebridge.yaml
  voicebridge tools --config voicebridge.yaml
  VOICEBRIDGE_PROVIDER_API_KEY=sk-... voicebridge serve -c voicebridge.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "voicebridge.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose (debug) logging")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return flagVerbose
}
