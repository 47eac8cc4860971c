package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/store"
)

var statusRoom string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show room status",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusRoom, "room", "r", "", "Room name; omit for a summary of all rooms")
}

func runStatus(cmd *cobra.Command, args []string) {
	printHeader("📊 hiveroom Status")

	_, st := mustOpen()
	defer st.Close()

	if statusRoom == "" {
		runRoomList(cmd, args)
		return
	}

	room := mustRoom(st, statusRoom)
	fmt.Printf("Room:   %s (%s)\n", room.Name, room.Status)
	if room.Goal != "" {
		fmt.Printf("Goal:   %s\n", room.Goal)
	}
	fmt.Printf("Quorum: %s, %dm voting window\n", room.QuorumThreshold, room.QuorumTimeout)
	if room.QuietHoursFrom != "" {
		fmt.Printf("Quiet:  %s-%s\n", room.QuietHoursFrom, room.QuietHoursUntil)
	}

	agents, err := st.ListRoomAgents(room.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nAgents (%d):\n", len(agents))
	for _, a := range agents {
		fmt.Printf("  %-16s %-6s %s\n", a.Name, a.Role, colorState(a.State))
	}

	open, err := st.ListDecisions(room.ID, store.DecisionStatusVoting, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(open) > 0 {
		fmt.Printf("\nOpen decisions (%d):\n", len(open))
		for _, d := range open {
			votes, _ := st.CountVotes(d.ID)
			fmt.Printf("  %s  %dy/%dn/%da  %s\n", d.ID, votes.Yes, votes.No, votes.Abstain, d.Text)
		}
	}

	tree := goal.NewTree(st, nil)
	if rendered, err := tree.Render(room.ID); err == nil && rendered != "" {
		fmt.Println("\nGoals:")
		fmt.Print(rendered)
	}

	activity, err := st.ListActivity(room.ID, 10)
	if err == nil && len(activity) > 0 {
		fmt.Println("\nRecent activity:")
		for _, e := range activity {
			fmt.Printf("  %s %s %s\n",
				color.HiBlackString(e.CreatedAt.Local().Format(time.Kitchen)), e.Kind, e.Detail)
		}
	}
}
