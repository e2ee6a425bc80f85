// Package cliopts parses keyveild's command line into a daemon.Options,
// using cobra the way the teacher's cmd/root.go does, but for a single
// root command rather than a multi-verb CLI — keyveild has one job.
package cliopts

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/keyveil/internal/daemon"
	"github.com/bnema/keyveil/internal/escapecombo"
)

// Version is set at build time via -ldflags, following the teacher's
// cmd/version.go convention.
var Version = "0.1.0-dev"

const (
	defaultDelayMS      = 100
	defaultStartDelayMS = 500
	defaultColor        = "ffff0000"
)

// Parse builds the root command, runs it against args, and passes the
// resulting daemon.Options to run once flags are validated. run's error
// is returned unwrapped so main can distinguish daemon.FatalInitError
// from a plain usage error.
func Parse(args []string, run func(daemon.Options) error) error {
	var (
		delayMS      int64
		startDelayMS int64
		colorHex     string
		comboSpec    string
	)

	root := &cobra.Command{
		Use:          "keyveild",
		Short:        "Anti-keystroke-biometric input anonymizer for Wayland",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			color, err := parseColor(colorHex)
			if err != nil {
				return err
			}
			return run(daemon.Options{
				MaxDelayMS:   delayMS,
				StartDelayMS: startDelayMS,
				OverlayColor: color,
				ComboSpec:    comboSpec,
			})
		},
	}
	root.SetVersionTemplate("keyveild version {{.Version}}\n")

	root.Flags().Int64VarP(&delayMS, "delay", "d", defaultDelayMS, "maximum random per-event delay, in milliseconds")
	root.Flags().Int64VarP(&startDelayMS, "start-delay", "s", defaultStartDelayMS, "sleep before initialization, in milliseconds (lets the compositor stabilize)")
	root.Flags().StringVarP(&colorHex, "color", "c", defaultColor, "synthetic-cursor color, as AARRGGBB hex")
	root.Flags().StringVarP(&comboSpec, "esc-key-combo", "k", escapecombo.DefaultSpec, "comma-separated escape-combo groups, '|' for interchangeable keys within a group")

	root.SetArgs(args)
	return root.Execute()
}

// parseColor decodes an AARRGGBB hex string into the uint32 overlay
// color spec.md §6 specifies.
func parseColor(hex string) (uint32, error) {
	if len(hex) != 8 {
		return 0, fmt.Errorf("cliopts: --color must be 8 hex digits (AARRGGBB), got %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("cliopts: --color: %w", err)
	}
	return uint32(v), nil
}
