package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/goal"
)

var (
	goalRoom     string
	goalAgent    string
	goalParent   string
	goalNote     string
	goalProgress float64
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage room goals",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var goalAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a goal, optionally under a parent",
	Args:  cobra.ExactArgs(1),
	Run:   runGoalAdd,
}

var goalUpdateCmd = &cobra.Command{
	Use:   "update <goal-id>",
	Short: "Record progress on a leaf goal",
	Args:  cobra.ExactArgs(1),
	Run:   runGoalUpdate,
}

var goalTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Render a room's goal tree",
	Run:   runGoalTree,
}

func init() {
	goalAddCmd.Flags().StringVarP(&goalRoom, "room", "r", "", "Room name (required)")
	goalAddCmd.Flags().StringVarP(&goalParent, "parent", "p", "", "Parent goal id")
	goalAddCmd.Flags().StringVarP(&goalAgent, "agent", "a", "", "Assigned agent name")

	goalUpdateCmd.Flags().StringVarP(&goalRoom, "room", "r", "", "Room name (required)")
	goalUpdateCmd.Flags().StringVarP(&goalAgent, "agent", "a", "", "Reporting agent name")
	goalUpdateCmd.Flags().StringVar(&goalNote, "note", "", "What was done")
	goalUpdateCmd.Flags().Float64Var(&goalProgress, "progress", -1, "Fraction complete, 0.0-1.0")

	goalTreeCmd.Flags().StringVarP(&goalRoom, "room", "r", "", "Room name (required)")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalUpdateCmd)
	goalCmd.AddCommand(goalTreeCmd)
}

func runGoalAdd(cmd *cobra.Command, args []string) {
	if goalRoom == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, goalRoom)
	agentID := ""
	if goalAgent != "" {
		agentID = mustAgent(st, room.ID, goalAgent).ID
	}

	tree := goal.NewTree(st, bus.NewActivityBus(st))
	g, err := tree.Add(room.ID, goalParent, agentID, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Goal %s created\n", g.ID)
}

func runGoalUpdate(cmd *cobra.Command, args []string) {
	if goalRoom == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, goalRoom)
	agentID := ""
	if goalAgent != "" {
		agentID = mustAgent(st, room.ID, goalAgent).ID
	}

	var contribution *float64
	if goalProgress >= 0 {
		contribution = &goalProgress
	}

	tree := goal.NewTree(st, bus.NewActivityBus(st))
	g, err := tree.RecordUpdate(args[0], agentID, goalNote, contribution)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Goal %s at %.0f%% (%s)\n", g.ID, g.Progress*100, g.Status)
}

func runGoalTree(cmd *cobra.Command, args []string) {
	if goalRoom == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, goalRoom)
	tree := goal.NewTree(st, nil)
	rendered, err := tree.Render(room.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rendered == "" {
		fmt.Println("No goals.")
		return
	}
	fmt.Print(rendered)
}
