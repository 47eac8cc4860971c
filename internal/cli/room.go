package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	roomName       string
	roomGoal       string
	roomQuietFrom  string
	roomQuietUntil string
	roomThreshold  string
	roomTimeout    int
	roomMaxAgents  int
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Manage rooms",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var roomCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room",
	Run:   runRoomCreate,
}

var roomApplyCmd = &cobra.Command{
	Use:   "apply <manifest.yaml>",
	Short: "Apply a YAML manifest of rooms, agents, and initial goals",
	Args:  cobra.ExactArgs(1),
	Run:   runRoomApply,
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rooms",
	Run:   runRoomList,
}

var roomPauseCmd = &cobra.Command{
	Use:   "pause <name>",
	Short: "Pause a room (agent loops stop on their next wakeup)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setRoomStatus(args[0], store.RoomStatusPaused)
	},
}

var roomResumeCmd = &cobra.Command{
	Use:   "resume <name>",
	Short: "Resume a paused room",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setRoomStatus(args[0], store.RoomStatusActive)
	},
}

func init() {
	roomCreateCmd.Flags().StringVarP(&roomName, "name", "n", "", "Room name (required)")
	roomCreateCmd.Flags().StringVarP(&roomGoal, "goal", "g", "", "Room goal")
	roomCreateCmd.Flags().StringVar(&roomQuietFrom, "quiet-from", "", "Quiet hours start, HH:MM")
	roomCreateCmd.Flags().StringVar(&roomQuietUntil, "quiet-until", "", "Quiet hours end, HH:MM")
	roomCreateCmd.Flags().StringVar(&roomThreshold, "threshold", "majority", "Quorum threshold: majority, supermajority, unanimous")
	roomCreateCmd.Flags().IntVar(&roomTimeout, "timeout", 60, "Decision voting timeout in minutes")
	roomCreateCmd.Flags().IntVar(&roomMaxAgents, "max-agents", 8, "Maximum agents in the room")

	roomCmd.AddCommand(roomCreateCmd)
	roomCmd.AddCommand(roomApplyCmd)
	roomCmd.AddCommand(roomListCmd)
	roomCmd.AddCommand(roomPauseCmd)
	roomCmd.AddCommand(roomResumeCmd)
}

func runRoomCreate(cmd *cobra.Command, args []string) {
	if roomName == "" {
		fmt.Println("Error: --name is required")
		os.Exit(1)
	}
	if (roomQuietFrom == "") != (roomQuietUntil == "") {
		fmt.Println("Error: quiet hours need both --quiet-from and --quiet-until")
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	room, err := st.CreateRoom(&store.Room{
		Name:            roomName,
		Goal:            roomGoal,
		QuietHoursFrom:  roomQuietFrom,
		QuietHoursUntil: roomQuietUntil,
		QuorumThreshold: roomThreshold,
		QuorumTimeout:   roomTimeout,
		MaxAgents:       roomMaxAgents,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Room %q created (%s)\n", room.Name, room.ID)
}

func runRoomApply(cmd *cobra.Command, args []string) {
	manifest, err := config.LoadManifest(args[0])
	if err != nil {
		fmt.Printf("Manifest error: %v\n", err)
		os.Exit(1)
	}

	_, st := mustOpen()
	defer st.Close()

	for _, rm := range manifest.Rooms {
		room, err := applyRoom(st, rm)
		if err != nil {
			fmt.Printf("Error applying room %q: %v\n", rm.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Room %q ready (%d agents)\n", room.Name, len(rm.Agents))
	}
}

// applyRoom upserts one manifest room: the room row, its agents, and its
// initial goal tree. Existing agents are matched by name and left alone.
func applyRoom(st *store.Store, rm config.RoomManifest) (*store.Room, error) {
	room, err := st.GetRoomByName(rm.Name)
	if err != nil {
		return nil, err
	}
	if room == nil {
		autoApprove := "[]"
		if len(rm.Quorum.AutoApproveKind) > 0 {
			data, _ := json.Marshal(rm.Quorum.AutoApproveKind)
			autoApprove = string(data)
		}
		room, err = st.CreateRoom(&store.Room{
			Name:            rm.Name,
			Goal:            rm.Goal,
			QuietHoursFrom:  rm.QuietHours.From,
			QuietHoursUntil: rm.QuietHours.Until,
			QuorumThreshold: rm.Quorum.Threshold,
			QuorumTimeout:   rm.Quorum.TimeoutMinutes,
			AutoApprove:     autoApprove,
			MaxAgents:       rm.MaxAgents,
		})
		if err != nil {
			return nil, err
		}
	}

	existing, err := st.ListRoomAgents(room.ID)
	if err != nil {
		return nil, err
	}
	byName := map[string]string{}
	for _, a := range existing {
		byName[a.Name] = a.ID
	}

	for _, am := range rm.Agents {
		if _, ok := byName[am.Name]; ok {
			continue
		}
		if len(byName) >= room.MaxAgents {
			return nil, fmt.Errorf("room is full (%d agents)", room.MaxAgents)
		}
		a, err := st.CreateAgent(&store.Agent{
			RoomID:   room.ID,
			Name:     am.Name,
			Role:     am.Role,
			Model:    am.Model,
			CycleGap: am.CycleGapSec,
			MaxTurns: am.MaxTurns,
		})
		if err != nil {
			return nil, err
		}
		byName[a.Name] = a.ID
	}

	goals, err := st.ListRoomGoals(room.ID)
	if err != nil {
		return nil, err
	}
	// Initial goals apply once, on an empty room.
	if len(goals) == 0 {
		if err := applyGoals(st, room.ID, "", rm.InitialGoal, byName); err != nil {
			return nil, err
		}
	}
	return room, nil
}

func applyGoals(st *store.Store, roomID, parentID string, goals []config.GoalManifest, agents map[string]string) error {
	for _, gm := range goals {
		g, err := st.CreateGoal(&store.Goal{
			RoomID:   roomID,
			ParentID: parentID,
			AgentID:  agents[gm.Assigned],
			Text:     gm.Text,
		})
		if err != nil {
			return err
		}
		if err := applyGoals(st, roomID, g.ID, gm.Children, agents); err != nil {
			return err
		}
	}
	return nil
}

func runRoomList(cmd *cobra.Command, args []string) {
	_, st := mustOpen()
	defer st.Close()

	rooms, err := st.ListRooms()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms. Create one with 'hiveroom room create' or 'hiveroom room apply'.")
		return
	}
	for _, r := range rooms {
		n, _ := st.CountRoomAgents(r.ID)
		status := r.Status
		if r.Status == store.RoomStatusActive {
			status = color.GreenString(r.Status)
		} else {
			status = color.YellowString(r.Status)
		}
		fmt.Printf("%-20s %s  agents=%d  quorum=%s/%dm", r.Name, status, n, r.QuorumThreshold, r.QuorumTimeout)
		if r.QuietHoursFrom != "" {
			fmt.Printf("  quiet=%s-%s", r.QuietHoursFrom, r.QuietHoursUntil)
		}
		fmt.Println()
	}
}

func setRoomStatus(name, status string) {
	_, st := mustOpen()
	defer st.Close()

	room := mustRoom(st, name)
	if err := st.UpdateRoomStatus(room.ID, status); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Room %q is now %s\n", name, status)
}
