package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/hookinstall"
)

var hookBinPath string

var installHooksCmd = &cobra.Command{
	Use:   "install-hooks",
	Short: "Register devark hooks with Claude Code and Cursor",
	Long: `Write the devark-sync hook entries into the Claude Code settings file
and the Cursor hooks file. Existing entries from other tools are preserved.`,
	RunE: runInstallHooks,
}

var uninstallHooksCmd = &cobra.Command{
	Use:   "uninstall-hooks",
	Short: "Remove devark hooks from Claude Code and Cursor",
	RunE:  runUninstallHooks,
}

func init() {
	rootCmd.AddCommand(installHooksCmd)
	rootCmd.AddCommand(uninstallHooksCmd)

	installHooksCmd.Flags().StringVar(&hookBinPath, "hook-bin", "", "path to the devark-hook binary (default: resolved from PATH)")
}

func runInstallHooks(cmd *cobra.Command, args []string) error {
	cfg := hookinstall.Config{BinPath: resolveHookBin()}
	if err := hookinstall.Install(cfg); err != nil {
		return err
	}
	fmt.Println("Hooks installed for Claude Code and Cursor.")
	return nil
}

func runUninstallHooks(cmd *cobra.Command, args []string) error {
	if err := hookinstall.Uninstall(hookinstall.Config{}); err != nil {
		return err
	}
	fmt.Println("Hooks removed.")
	return nil
}

// resolveHookBin prefers the flag, then a devark-hook sitting next to this
// binary, then the bare name for PATH lookup at hook time.
func resolveHookBin() string {
	if hookBinPath != "" {
		return hookBinPath
	}
	if exe, err := os.Executable(); err == nil {
		sibling := exe + "-hook"
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return ""
}
