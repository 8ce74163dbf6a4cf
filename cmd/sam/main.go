// Command sam is the local assistant CLI: one-shot chat through the
// full generation pipeline, resource inspection, and the approval
// queue.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/samlabs/sam-go/budget"
	"github.com/samlabs/sam-go/compress"
	"github.com/samlabs/sam-go/core"
	"github.com/samlabs/sam-go/engine"
	"github.com/samlabs/sam-go/feedback"
	"github.com/samlabs/sam-go/memory"
	"github.com/samlabs/sam-go/memory/embedder/cached"
	"github.com/samlabs/sam-go/memory/embedder/mock"
	"github.com/samlabs/sam-go/memory/store/chromem"
	"github.com/samlabs/sam-go/mood"
	"github.com/samlabs/sam-go/resource"
	"github.com/samlabs/sam-go/selector"
)

var (
	configPath string
	dbPath     string
	sessionID  string
)

func main() {
	root := &cobra.Command{
		Use:   "sam",
		Short: "Local personal assistant",
		Long:  "sam runs a resource-aware local generation pipeline: model selection, token budgeting, memory retrieval, and background unloading.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultPath("resource.json"), "resource config file")
	root.PersistentFlags().StringVar(&dbPath, "db", defaultPath("feedback.db"), "feedback database")
	root.PersistentFlags().StringVar(&sessionID, "session", "default", "session/user id for memory namespacing")

	root.AddCommand(chatCmd(), resourceCmd(), queueCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return home + "/.sam/" + name
}

// buildEngine wires the full pipeline. The stub backend stands in until
// a real local runtime is attached.
func buildEngine(sel *selector.Selector) (*engine.Engine, *resource.Manager, error) {
	cfg, err := resource.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load resource config: %w", err)
	}
	res, err := resource.NewManager(cfg, nil, configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := chromem.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create memory store: %w", err)
	}
	embedder, err := cached.New(mock.New(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder cache: %w", err)
	}
	mem := memory.NewSimpleManager(store, embedder, nil)

	budgetMgr := budget.NewManager(budget.WithCompressor(compress.New()))
	if est, err := budget.NewTiktokenEstimator(); err != nil {
		log.Printf("[SAM] tiktoken unavailable, using word estimator: %v", err)
	} else {
		budgetMgr = budget.NewManager(
			budget.WithEstimator(est),
			budget.WithCompressor(compress.New()),
		)
	}

	e := engine.New(engine.NewStubBackend(), res,
		engine.WithSelector(sel),
		engine.WithBudget(budgetMgr),
		engine.WithMemory(mem),
		engine.WithMood(mood.New(nil)),
		engine.WithTimeout(90*time.Second),
	)
	return e, res, nil
}

func chatCmd() *cobra.Command {
	var allowEscalation bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := selector.New(nil)
			e, _, err := buildEngine(sel)
			if err != nil {
				return err
			}

			query := ""
			for i, a := range args {
				if i > 0 {
					query += " "
				}
				query += a
			}

			res, err := e.Generate(context.Background(), &core.GenerationRequest{
				SessionID:       sessionID,
				Query:           query,
				AllowEscalation: allowEscalation,
			})
			if err != nil {
				return err
			}

			fmt.Println(res.Text)
			fmt.Printf("\n[model=%s reason=%s confidence=%.2f %dms]\n",
				res.ModelKey, res.Reason, res.Confidence, res.DurationMs)
			if res.Escalate {
				fmt.Println("[flagged for escalation]")
			}
			st := sel.Stats()
			fmt.Printf("[selector: %d picks this session, %.0f%% large]\n",
				st.Total, st.LargeRatio*100)
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowEscalation, "escalate", false, "allow remote escalation on low-quality answers")
	return cmd
}

func resourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resource",
		Short: "Show current resource level and thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resource.LoadConfig(configPath)
			if err != nil {
				return err
			}
			res, err := resource.NewManager(cfg, nil, configPath)
			if err != nil {
				return err
			}

			fmt.Printf("free memory: %.2f GB\n", res.FreeGB())
			fmt.Printf("level:       %s\n", res.CurrentLevel())
			fmt.Printf("thresholds:  critical<%.1f low<%.1f moderate<%.1f good>=%.1f\n",
				cfg.MemoryCriticalGB, cfg.MemoryLowGB, cfg.MemoryModerateGB, cfg.MemoryGoodGB)
			ok, reason := res.CanPerformHeavyOp()
			fmt.Printf("heavy ops:   %v (%s)\n", ok, reason)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the approval queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending items",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := feedback.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Queue(context.Background(), feedback.StatusPending)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("queue empty")
				return nil
			}
			for _, item := range items {
				fmt.Printf("%s  %-12s %s\n", item.ID, item.Kind, item.Payload)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "approve [id]",
		Short: "Approve a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := feedback.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Approve(context.Background(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reject [id]",
		Short: "Reject a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := feedback.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Reject(context.Background(), args[0])
		},
	})

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show calibration bins and recent feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := feedback.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			bins, err := store.BinStats(context.Background())
			if err != nil {
				return err
			}
			if len(bins) == 0 {
				fmt.Println("no calibration data yet")
			} else {
				fmt.Println("confidence calibration:")
				for _, b := range bins {
					fmt.Printf("  [%.1f-%.1f)  %3d rated  %.0f%% positive\n",
						float64(b.Bin)/10, float64(b.Bin+1)/10, b.Total, b.Accuracy*100)
				}
			}

			entries, err := store.List(context.Background(), 5)
			if err != nil {
				return err
			}
			if len(entries) > 0 {
				fmt.Println("\nrecent feedback:")
				for _, e := range entries {
					mark := "+"
					if e.Rating < 0 {
						mark = "-"
					}
					fmt.Printf("  %s %s (%s)\n", mark, e.Query, e.ModelKey)
				}
			}
			return nil
		},
	}
}
