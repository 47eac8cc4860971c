package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	agentRoom     string
	agentName     string
	agentRole     string
	agentModel    string
	agentCycleGap int
	agentMaxTurns int
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an agent to a room",
	Run:   runAgentAdd,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents in a room",
	Run:   runAgentList,
}

func init() {
	agentAddCmd.Flags().StringVarP(&agentRoom, "room", "r", "", "Room name (required)")
	agentAddCmd.Flags().StringVarP(&agentName, "name", "n", "", "Agent name (required)")
	agentAddCmd.Flags().StringVar(&agentRole, "role", "worker", "Role: queen or worker")
	agentAddCmd.Flags().StringVarP(&agentModel, "model", "m", "", "Model string, e.g. anthropic/claude-sonnet-4-5")
	agentAddCmd.Flags().IntVar(&agentCycleGap, "cycle-gap", 120, "Seconds between cycles")
	agentAddCmd.Flags().IntVar(&agentMaxTurns, "max-turns", 25, "Max tool turns per cycle")

	agentListCmd.Flags().StringVarP(&agentRoom, "room", "r", "", "Room name (required)")

	agentCmd.AddCommand(agentAddCmd)
	agentCmd.AddCommand(agentListCmd)
}

func runAgentAdd(cmd *cobra.Command, args []string) {
	if agentRoom == "" || agentName == "" {
		fmt.Println("Error: --room and --name are required")
		os.Exit(1)
	}

	cfg, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, agentRoom)
	if room.Status == store.RoomStatusStopped {
		fmt.Printf("Room %q is stopped\n", agentRoom)
		os.Exit(1)
	}
	n, err := st.CountRoomAgents(room.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if n >= room.MaxAgents {
		fmt.Printf("Room %q is full (%d agents)\n", agentRoom, room.MaxAgents)
		os.Exit(1)
	}

	model := agentModel
	if model == "" {
		model = cfg.Model.Name
	}
	if agentRole == "queen" {
		agents, err := st.ListRoomAgents(room.ID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		for _, a := range agents {
			if a.Role == "queen" {
				fmt.Printf("Room %q already has a queen (%s)\n", agentRoom, a.Name)
				os.Exit(1)
			}
		}
	}

	a, err := st.CreateAgent(&store.Agent{
		RoomID:   room.ID,
		Name:     agentName,
		Role:     agentRole,
		Model:    model,
		CycleGap: agentCycleGap,
		MaxTurns: agentMaxTurns,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Agent %q (%s) added to %q with model %s\n", a.Name, a.Role, agentRoom, a.Model)
}

func runAgentList(cmd *cobra.Command, args []string) {
	if agentRoom == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, agentRoom)
	agents, err := st.ListRoomAgents(room.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(agents) == 0 {
		fmt.Println("No agents in this room.")
		return
	}
	for _, a := range agents {
		fmt.Printf("%-16s %-6s %-12s %-24s gap=%ds  (updated %s)\n",
			a.Name, a.Role, colorState(a.State), a.Model, a.CycleGap,
			a.UpdatedAt.Local().Format(time.Kitchen))
	}
}

func colorState(state string) string {
	switch state {
	case store.AgentStateActing:
		return color.GreenString(state)
	case store.AgentStateThinking:
		return color.CyanString(state)
	case store.AgentStateRateLimited:
		return color.RedString(state)
	default:
		return state
	}
}
