// Package cli wires the commands together.
package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config   string
	Roster   string
	DB       string
	Verbose  bool
	Headless bool
}

var globalFlags GlobalFlags

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "dawnkeeper",
	Short: "Dawnkeeper - Dawn rewards multi-account keeper",
	Long: `Dawnkeeper keeps a roster of Dawn rewards accounts logged in.

It drives each account through captcha-solving login, sends periodic
keepalives, refreshes reward points and renews session tokens before
they expire, with a live terminal dashboard and a read-only status API.

Use "dawnkeeper [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("DAWNKEEPER_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.Roster, "roster", "", "Path to roster file (overrides config)")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DB, "db", "", "Path to credential store database (overrides config)")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Dawnkeeper",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		fmt.Println("Dawnkeeper Version:", info.Version)
		fmt.Println("Go Version:", info.GoVersion)
		fmt.Println("OS/Arch:", info.OS+"/"+info.Arch)
	},
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Execute runs the root command with the given arguments
func Execute(args []string) error {
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

// ExecuteWithErrorCode runs the root command and returns an exit code
func ExecuteWithErrorCode(args []string) int {
	if err := Execute(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
