// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"strings"
	"time"

	"bandstretch/internal/config"
	"bandstretch/pkg/build"

	"github.com/spf13/cobra"
)

// ParseArgs builds the runtime configuration: defaults, then the YAML file,
// then environment overrides, then command line flags. Returns the final
// validated config.
func ParseArgs() (*config.Config, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	// The config file has to be loaded before flags are registered so that
	// unset flags fall back to the file's values rather than the built-in
	// defaults. Cobra has not parsed anything yet, so scan for it by hand.
	configPath := configPathFromArgs(args)
	options, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = ""
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", configPath,
		"Path to a YAML config file")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&options.Audio.InputDevice, "input-device", "d", options.Audio.InputDevice,
		"Input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&options.Audio.OutputDevice, "output-device", "D", options.Audio.OutputDevice,
		"Output device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&options.Audio.SampleRate, "sample-rate", "s", options.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")

	rootCmd.PersistentFlags().IntVarP(&options.Audio.FramesPerBuffer, "frames-per-buffer", "b", options.Audio.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&options.Audio.LowLatency, "low-latency", "l", options.Audio.LowLatency,
		"Use low latency mode for real-time processing")

	// Granular Engine Configuration
	rootCmd.PersistentFlags().Float64Var(&options.Engine.GrainSeconds, "grain", options.Engine.GrainSeconds,
		"Grain duration in seconds")
	rootCmd.PersistentFlags().Float64Var(&options.Engine.OverlapFactor, "overlap", options.Engine.OverlapFactor,
		"Number of overlapping grains per band")
	rootCmd.PersistentFlags().IntVar(&options.Engine.MaxActiveBands, "max-bands", options.Engine.MaxActiveBands,
		"Maximum number of bands synthesizing at once")
	rootCmd.PersistentFlags().Float64Var(&options.Engine.GateThreshold, "gate", options.Engine.GateThreshold,
		"Capture noise gate threshold (0 disables)")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Recording.Enabled, "record", "r", options.Recording.Enabled,
		"Record the master output to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&options.Recording.OutputFile, "output", "o", options.Recording.OutputFile,
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transport Configuration
	rootCmd.PersistentFlags().BoolVar(&options.Transport.WebSocketEnabled, "websocket", options.Transport.WebSocketEnabled,
		"Publish band energies over websocket")
	rootCmd.PersistentFlags().StringVar(&options.Transport.WebSocketPort, "ws-port", options.Transport.WebSocketPort,
		"Websocket listen port")
	rootCmd.PersistentFlags().BoolVar(&options.Transport.UDPEnabled, "udp", options.Transport.UDPEnabled,
		"Publish band energies over UDP")
	rootCmd.PersistentFlags().StringVar(&options.Transport.UDPTarget, "udp-target", options.Transport.UDPTarget,
		"UDP target address (host:port)")

	// Display Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Meter, "meter", "m", options.Meter,
		"Show the live band energy meter")
	rootCmd.PersistentFlags().StringVar(&options.LogLevel, "log-level", options.LogLevel,
		"Log level (debug, info, warn, error)")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if options.Recording.Enabled && options.Recording.OutputFile == "" {
		options.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	// Flags may have pushed values outside the accepted ranges.
	if err := options.Validate(); err != nil {
		return nil, err
	}

	return options, nil
}

// configPathFromArgs extracts the --config/-f value ahead of cobra parsing.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" || arg == "-f":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
