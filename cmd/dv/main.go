package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"dailyvision/internal/app"
	"dailyvision/internal/config"
	"dailyvision/internal/db"
	"dailyvision/internal/domain"
	"dailyvision/internal/engine"
	"dailyvision/internal/repo"
	"dailyvision/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dv",
	Short: "DailyVision CLI",
	Long: `DailyVision turns long-term visions into a few small actions per day.
- Visions: what you want to become, in four categories (health, career, relationships, personal-growth), ordered by priority.
- Budget: how many minutes you have today and how they are split across visions. It resets every day.
- Actions: today's small steps, generated once per day from the budget (by a model backend when configured, templates otherwise).
- Timer: start/stop an action to measure the time spent.
- Victories: finishing the day's actions records a victory; consecutive days build a streak.
- Event log: every change is recorded, view with 'dv log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DAILYVISION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id (defaults to the OS user)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(visionCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(actionsCmd())
	rootCmd.AddCommand(victoryCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func currentUser() string {
	return app.ResolveUser(viper.GetString("user"))
}

func visionCmd() *cobra.Command {
	v := &cobra.Command{
		Use:   "vision",
		Short: "Manage visions",
		Long:  "A vision is a long-term goal. Its position in the list is its priority: the first vision gets the first action.",
	}
	v.AddCommand(visionAddCmd())
	v.AddCommand(visionListCmd())
	v.AddCommand(visionRemoveCmd())
	v.AddCommand(visionReorderCmd())
	return v
}

func visionAddCmd() *cobra.Command {
	var in engine.VisionInput
	var category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a vision",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Category = domain.Category(category)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				vision, err := e.AddVision(ctx, currentUser(), in)
				if err != nil {
					return err
				}
				return printJSONOrTable(vision)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "health|career|relationships|personal-growth")
	cmd.Flags().StringVar(&in.Description, "description", "", "what the vision is about")
	cmd.Flags().IntVar(&in.SuggestedAllocationMinutes, "minutes", 0, "suggested daily minutes")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func visionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List visions by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVisions(ctx, currentUser())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Priority", "ID", "Category", "Description", "Suggested"})
				for _, v := range items {
					tw.AppendRow(table.Row{v.Priority, v.ID, v.Category, v.Description, v.SuggestedAllocationMinutes})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func visionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <vision-id>",
		Short: "Remove a vision and its allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoveVision(ctx, currentUser(), args[0]); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"removed": args[0]})
			})
		},
	}
}

func visionReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <vision-id>...",
		Short: "Set vision priorities, highest first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ReorderVisions(ctx, currentUser(), args)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func budgetCmd() *cobra.Command {
	b := &cobra.Command{
		Use:   "budget",
		Short: "Daily time budget",
		Long:  "The budget is today's available minutes split across visions. Allocations clear at the start of each day; the total is kept.",
	}
	b.AddCommand(budgetShowCmd())
	b.AddCommand(budgetTotalCmd())
	b.AddCommand(budgetSetCmd())
	b.AddCommand(budgetModeCmd("equal", "Split the total equally across visions", engine.AllocateRequest{Equal: true}))
	b.AddCommand(budgetModeCmd("suggested", "Use each vision's suggested minutes", engine.AllocateRequest{Suggested: true}))
	return b
}

func printBudget(snap domain.AllocationSnapshot) error {
	if viper.GetBool("json") {
		return printJSON(snap)
	}
	used := 0
	tw := newTable()
	tw.AppendHeader(table.Row{"Vision", "Minutes"})
	for _, a := range snap.Allocations {
		tw.AppendRow(table.Row{a.VisionID, a.Minutes})
		used += a.Minutes
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%s total", snap.Date), fmt.Sprintf("%d / %d", used, snap.TotalAvailableMinutes)})
	tw.Render()
	return nil
}

func budgetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show today's budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Budget(ctx, currentUser())
				if err != nil {
					return err
				}
				return printBudget(snap)
			})
		},
	}
}

func budgetTotalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "total <minutes>",
		Short: "Set today's available minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid minutes %q", args[0])
			}
			return allocate(cmd.Context(), engine.AllocateRequest{Total: &total})
		},
	}
}

func budgetSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <vision-id>=<minutes>...",
		Short: "Allocate minutes to visions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits := make(map[string]int, len(args))
			for _, arg := range args {
				id, raw, found := strings.Cut(arg, "=")
				if !found || strings.TrimSpace(id) == "" {
					return fmt.Errorf("expected <vision-id>=<minutes>, got %q", arg)
				}
				minutes, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid minutes in %q", arg)
				}
				edits[strings.TrimSpace(id)] = minutes
			}
			return allocate(cmd.Context(), engine.AllocateRequest{Allocations: edits})
		},
	}
}

func budgetModeCmd(use, short string, req engine.AllocateRequest) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return allocate(cmd.Context(), req)
		},
	}
}

func allocate(ctx context.Context, req engine.AllocateRequest) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		snap, err := e.Allocate(ctx, currentUser(), req)
		if err != nil {
			return err
		}
		return printBudget(snap)
	})
}

func actionsCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "actions",
		Short: "Today's actions",
		Long: `Actions are generated once per day for visions with allocated minutes. Finishing the last open action records the day's victory.

The generator's rate limit and reply cache live in process memory. Each dv
invocation starts with both empty; they only take effect across requests
under dv serve.`,
	}
	a.AddCommand(actionsListCmd())
	a.AddCommand(actionsGenerateCmd())
	a.AddCommand(actionTimerCmd("start", "Start the timer on an action", func(e engine.Engine) timerFunc { return e.StartTimer }))
	a.AddCommand(actionTimerCmd("stop", "Stop the timer on an action", func(e engine.Engine) timerFunc { return e.StopTimer }))
	a.AddCommand(actionDoneCmd())
	a.AddCommand(actionSkipCmd())
	return a
}

func printActions(res engine.ActionsResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Vision", "Description", "Est", "Actual", "Status"})
	for _, a := range res.Actions {
		actual := ""
		if a.ActualTimeMinutes != nil {
			actual = strconv.Itoa(*a.ActualTimeMinutes)
		}
		tw.AppendRow(table.Row{a.ID, a.VisionID, a.Description, a.EstimatedTimeMinutes, actual, a.Status})
	}
	caption := res.Date
	if res.Generated {
		caption += " (generated: " + string(res.Source)
		if res.Reason != "" {
			caption += ", " + res.Reason
		}
		caption += ")"
	}
	tw.SetCaption(caption)
	tw.Render()
	return nil
}

func actionsListCmd() *cobra.Command {
	var regenerate bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List today's actions, generating them if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.DailyActions(ctx, currentUser(), regenerate)
				if err != nil {
					return err
				}
				return printActions(res)
			})
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "replace today's actions")
	return cmd
}

func actionsGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Replace today's actions with a new list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.DailyActions(ctx, currentUser(), true)
				if err != nil {
					return err
				}
				return printActions(res)
			})
		},
	}
}

type timerFunc func(ctx context.Context, userID, actionID string) (domain.TimingSession, error)

func actionTimerCmd(use, short string, pick func(engine.Engine) timerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <action-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				session, err := pick(e)(ctx, currentUser(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(session)
			})
		},
	}
}

func actionDoneCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "done <action-id>",
		Short: "Mark an action completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var actual *int
			if cmd.Flags().Changed("minutes") {
				actual = &minutes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CompleteAction(ctx, currentUser(), args[0], actual)
				if err != nil {
					return err
				}
				return printCompletion(res)
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "actual minutes spent (overrides the timer)")
	return cmd
}

func actionSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <action-id>",
		Short: "Skip an action for today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SkipAction(ctx, currentUser(), args[0])
				if err != nil {
					return err
				}
				return printCompletion(res)
			})
		},
	}
}

func printCompletion(res engine.CompleteResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	fmt.Printf("%s: %s\n", res.Action.ID, res.Action.Status)
	if res.Victory != nil {
		fmt.Printf("Victory! Day %d recorded (%d/%d actions).\n", res.Victory.DayNumber, res.Victory.ActionsCompleted, res.Victory.TotalActions)
	}
	return nil
}

func victoryCmd() *cobra.Command {
	v := &cobra.Command{
		Use:   "victory",
		Short: "Victories and streaks",
		Long:  "One victory per day. The streak counts consecutive days and drops to zero after a missed day.",
	}
	v.AddCommand(victoryRecordCmd())
	v.AddCommand(victoryShowCmd())
	v.AddCommand(victoryStatsCmd())
	return v
}

func victoryRecordCmd() *cobra.Command {
	var completed, total, seconds int
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record today's victory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.RecordCompletion(ctx, currentUser(), completed, total, seconds)
				if err != nil {
					return err
				}
				if rec == nil {
					return printJSONOrTable(map[string]any{"recorded": false})
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().IntVar(&completed, "completed", 0, "actions completed")
	cmd.Flags().IntVar(&total, "total", 0, "total actions")
	cmd.Flags().IntVar(&seconds, "seconds", 0, "time spent in seconds")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func victoryShowCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the streak and recent victories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.Ledger(ctx, currentUser())
				if err != nil {
					return err
				}
				recent, err := e.Recent(ctx, currentUser(), n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ledger": l, "recent": recent})
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Date", "Day", "Completed", "Total", "Minutes"})
				for _, r := range recent {
					tw.AppendRow(table.Row{r.Date, r.DayNumber, r.ActionsCompleted, r.TotalActions, r.TimeSpentSeconds / 60})
				}
				tw.SetCaption(fmt.Sprintf("streak %d, %d days total", l.CurrentStreak, l.TotalDays))
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 7, "number of recent victories")
	return cmd
}

func victoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.Stats(ctx, currentUser())
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: visions, budgets, generated actions, timers and victories.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	f := repo.EventFilter{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.UserID = currentUser()
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, strings.Trim(evt.EntityKind+":"+evt.EntityID, ":"), evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in dailyvision.yml next to the .dailyvision directory: time zone, budget limits, generator limits, model backend and webhooks. Defaults apply when the file is missing.",
	}
	c.AddCommand(configShowCmd())
	c.AddCommand(configValidateCmd())
	c.AddCommand(configInitCmd())
	return c
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate dailyvision.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default dailyvision.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowUserHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "dv: ", log.LstdFlags)
			ctx := cmd.Context()
			ws, err := app.OpenWorkspace(ctx, viper.GetString("workspace"), logger)
			if err != nil {
				return err
			}
			defer ws.Close()
			authCfg := server.AuthConfig{
				JWTSecret:             viper.GetString("jwt-secret"),
				AllowLegacyUserHeader: allowUserHeader,
				Logger:                logger,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyUserHeader {
				return fmt.Errorf("DAILYVISION_JWT_SECRET is required for bearer auth (or pass --allow-user-header)")
			}
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			if server.StartWebhookDispatcher(ctx, ws.Engine) {
				logger.Printf("webhook dispatcher started for %d hook(s)", len(ws.Config.Webhooks))
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving DailyVision API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	cmd.Flags().BoolVar(&allowUserHeader, "allow-user-header", false, "trust X-User-Id when no bearer token is sent (development only)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.IssueToken(viper.GetString("jwt-secret"), currentUser(), ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": token, "user_id": currentUser()})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.OpenWorkspace(ctx, viper.GetString("workspace"), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
