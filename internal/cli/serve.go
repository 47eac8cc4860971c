package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hiveroom/hiveroom/internal/agent"
	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/notify"
	"github.com/hiveroom/hiveroom/internal/provider"
	"github.com/hiveroom/hiveroom/internal/quorum"
	"github.com/hiveroom/hiveroom/internal/scheduler"
	"github.com/hiveroom/hiveroom/internal/session"
	"github.com/hiveroom/hiveroom/internal/store"
)

var serveRoom string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run agent loops for every active room",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveRoom, "room", "r", "", "Serve one room only")
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🐝 hiveroom Serve")

	// 1. Config and store
	cfg, st := mustOpen()
	defer st.Close()

	// 2. Activity bus and mirrors
	activity := bus.NewActivityBus(st)
	if cfg.Activity.KafkaEnabled && cfg.Activity.KafkaBrokers != "" {
		mirror := bus.NewKafkaMirror(cfg.Activity.KafkaBrokers, cfg.Activity.KafkaTopic)
		activity.AddMirror(mirror)
		defer mirror.Close()
		fmt.Printf("Kafka mirror: %s → %s\n", cfg.Activity.KafkaBrokers, cfg.Activity.KafkaTopic)
	}
	if cfg.Notify.SlackEnabled && cfg.Notify.SlackToken != "" {
		notifier := notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
		activity.AddMirror(notifier)
		defer notifier.Close()
		fmt.Printf("Slack notifier: %s\n", cfg.Notify.SlackChannel)
	}

	// 3. Kernel services
	adapter := provider.NewRoutingAdapter(cfg.Model.APIBase, cfg.Model.CLIBinary)
	sessions := session.NewManager(st, adapter, activity, cfg.Session)
	engine := quorum.NewEngine(st, activity)
	goals := goal.NewTree(st, activity)
	pipeline := agent.NewPipeline(st, adapter, sessions, engine, goals, activity, cfg.Model)
	sched := scheduler.New(st, pipeline, activity, cfg.Loop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Decision expiry sweeper
	go engine.RunExpirySweeper(ctx, cfg.Loop.ExpirySweep)

	// 5. Start loops
	rooms, err := st.ListRooms()
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	started := 0
	for _, r := range rooms {
		if serveRoom != "" && r.Name != serveRoom {
			continue
		}
		if r.Status != store.RoomStatusActive {
			continue
		}
		n, err := sched.StartRoom(ctx, r.ID)
		if err != nil {
			fmt.Printf("Error starting room %q: %v\n", r.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Room %q: %d agent loops running\n", r.Name, n)
		started += n
	}
	if started == 0 {
		fmt.Println("No active rooms with agents. Apply a manifest first.")
		os.Exit(1)
	}

	fmt.Printf("Serving %d agents. Ctrl+C to stop.\n", started)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	cancel()
	sched.StopAll()
	fmt.Println("All loops stopped.")
}
