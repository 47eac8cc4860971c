package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/quorum"
	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	decisionRoom   string
	decisionAgent  string
	decisionKind   string
	decisionReason string
	decisionStatus string
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Propose, vote on, and inspect room decisions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var decisionProposeCmd = &cobra.Command{
	Use:   "propose <text>",
	Short: "Propose a decision in a room",
	Args:  cobra.ExactArgs(1),
	Run:   runDecisionPropose,
}

var decisionVoteCmd = &cobra.Command{
	Use:   "vote <decision-id> <yes|no|abstain>",
	Short: "Cast a vote on an open decision",
	Args:  cobra.ExactArgs(2),
	Run:   runDecisionVote,
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a room's decisions",
	Run:   runDecisionList,
}

func init() {
	decisionProposeCmd.Flags().StringVarP(&decisionRoom, "room", "r", "", "Room name (required)")
	decisionProposeCmd.Flags().StringVarP(&decisionAgent, "agent", "a", "", "Proposing agent name (required)")
	decisionProposeCmd.Flags().StringVarP(&decisionKind, "kind", "k", "", "Decision kind, e.g. direction, tooling")

	decisionVoteCmd.Flags().StringVarP(&decisionRoom, "room", "r", "", "Room name (required)")
	decisionVoteCmd.Flags().StringVarP(&decisionAgent, "agent", "a", "", "Voting agent name (required)")
	decisionVoteCmd.Flags().StringVar(&decisionReason, "reason", "", "Optional reasoning")

	decisionListCmd.Flags().StringVarP(&decisionRoom, "room", "r", "", "Room name (required)")
	decisionListCmd.Flags().StringVar(&decisionStatus, "status", "", "Filter: voting, approved, rejected")

	decisionCmd.AddCommand(decisionProposeCmd)
	decisionCmd.AddCommand(decisionVoteCmd)
	decisionCmd.AddCommand(decisionListCmd)
}

// mustAgent resolves an agent by name within a room.
func mustAgent(st *store.Store, roomID, name string) *store.Agent {
	agents, err := st.ListRoomAgents(roomID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for i := range agents {
		if agents[i].Name == name {
			return &agents[i]
		}
	}
	fmt.Printf("Agent %q not found in room\n", name)
	os.Exit(1)
	return nil
}

func runDecisionPropose(cmd *cobra.Command, args []string) {
	if decisionRoom == "" || decisionAgent == "" {
		fmt.Println("Error: --room and --agent are required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, decisionRoom)
	proposer := mustAgent(st, room.ID, decisionAgent)
	engine := quorum.NewEngine(st, bus.NewActivityBus(st))

	d, err := engine.Propose(room.ID, proposer.ID, args[0], decisionKind)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Decision %s is %s", d.ID, d.Status)
	if d.Status == store.DecisionStatusVoting {
		fmt.Printf(" (deadline %s)", d.Deadline.Local().Format("15:04"))
	}
	fmt.Println()
}

func runDecisionVote(cmd *cobra.Command, args []string) {
	if decisionRoom == "" || decisionAgent == "" {
		fmt.Println("Error: --room and --agent are required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, decisionRoom)
	voter := mustAgent(st, room.ID, decisionAgent)
	engine := quorum.NewEngine(st, bus.NewActivityBus(st))

	d, err := engine.Vote(args[0], voter.ID, args[1], decisionReason)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vote recorded; decision is %s\n", d.Status)
	if d.Result != "" {
		fmt.Println(d.Result)
	}
}

func runDecisionList(cmd *cobra.Command, args []string) {
	if decisionRoom == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, decisionRoom)
	decisions, err := st.ListDecisions(room.ID, decisionStatus, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions.")
		return
	}
	for _, d := range decisions {
		votes, _ := st.CountVotes(d.ID)
		status := d.Status
		switch d.Status {
		case store.DecisionStatusApproved:
			status = color.GreenString(d.Status)
		case store.DecisionStatusRejected:
			status = color.RedString(d.Status)
		case store.DecisionStatusVoting:
			status = color.YellowString(d.Status)
		}
		fmt.Printf("%s  %-10s %dy/%dn/%da  %s\n", d.ID, status, votes.Yes, votes.No, votes.Abstain, d.Text)
	}
}
