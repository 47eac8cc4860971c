// Package cli implements the hiveroom command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/hiveroom/hiveroom/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _     _\n" +
		" | |__ (_)_   _____ _ __ ___   ___  _ __ ___\n" +
		" | '_ \\| \\ \\ / / _ \\ '__/ _ \\ / _ \\| '_ ` _ \\\n" +
		" | | | | |\\ V /  __/ | | (_) | (_) | | | | | |\n" +
		" |_| |_|_| \\_/ \\___|_|  \\___/ \\___/|_| |_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "hiveroom",
	Short: "hiveroom - multi-agent room orchestrator",
	Long:  color.CyanString(logo) + "\nRooms of autonomous agents running continuous work loops with\nquorum decisions, shared goals, and durable sessions.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(roomCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ hiveroom Version")
		fmt.Printf("Version: %s\n", version)
	},
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

// mustOpen loads the config and opens the store, exiting on failure.
func mustOpen() (*config.Config, *store.Store) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	return cfg, st
}

// mustRoom resolves a room by name, exiting when it does not exist.
func mustRoom(st *store.Store, name string) *store.Room {
	room, err := st.GetRoomByName(name)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	if room == nil {
		fmt.Printf("Room %q not found\n", name)
		os.Exit(1)
	}
	return room
}
