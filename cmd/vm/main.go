package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"volunteermatch/internal/app"
	"volunteermatch/internal/config"
	"volunteermatch/internal/db"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/engine"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/repo"
	"volunteermatch/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "vm",
	Short: "Volunteer matching CLI",
	Long: `vm matches retired volunteers to job requests.
- Job requests: created Active, then In Progress, Fulfilled or Archived; every status change is kept in the history.
- Matching: each retiree is scored out of 120 (location, interests, background, days, frequency, hours); scores of 10 and above are kept.
- Invitations: invite a candidate, record Accepted or Declined; once every invite is answered and one accepted, the job moves to In Progress.
- Event log: every change is recorded, view with 'vm log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		_ = godotenv.Load(filepath.Join(workspace, ".env"))
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("VOLMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log to stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(candidateCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{Use: "job", Short: "Manage job requests"}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobGetCmd())
	job.AddCommand(jobUpdateCmd())
	job.AddCommand(jobDeleteCmd())
	job.AddCommand(jobMatchCmd())
	job.AddCommand(jobInviteCmd())
	job.AddCommand(jobRespondCmd())
	job.AddCommand(jobInspectCmd())
	return job
}

func jobCreateCmd() *cobra.Command {
	var in engine.JobRequestInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job request and run matching",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CreateJobRequest(ctx, in)
				if err != nil {
					if j.ID != "" {
						fmt.Fprintf(os.Stderr, "job request %s stored but matching failed\n", j.ID)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(j)
				}
				fmt.Printf("created %s (%d matches)\n", j.ID, len(j.MatchResults))
				printMatches(j.MatchResults)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Location, "location", "", "settlement where the job takes place")
	cmd.Flags().StringVar(&in.VolunteerField, "field", "", "volunteer field")
	cmd.Flags().StringVar(&in.ProfessionalBackground, "background", "", "wanted professional background")
	cmd.Flags().StringVar(&in.Frequency, "frequency", "", "how often")
	cmd.Flags().StringVar(&in.Timing, "timing", "", "hours of day")
	cmd.Flags().StringArrayVar(&in.Days, "day", []string{}, "required day (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	var f repo.JobRequestFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListJobRequests(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Location", "Field", "Status", "Matches", "Invited"})
				for _, row := range jobRows(items) {
					tw.AppendRow(row)
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Location, "location", "", "location filter")
	cmd.Flags().StringVar(&f.VolunteerField, "field", "", "volunteer field filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows")
	return cmd
}

func jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.GetJobRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJobRequest(j)
			})
		},
	}
}

func jobUpdateCmd() *cobra.Command {
	var title, description, location, field, background, frequency, timing, status, notes string
	var days []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a job request",
		Long:  "Only flags that are set are changed. Changing location, field, background or timing re-runs matching.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := func(name string, v *string) *string {
				if cmd.Flags().Changed(name) {
					return v
				}
				return nil
			}
			p := engine.JobRequestPatch{
				ID:                     args[0],
				Title:                  changed("title", &title),
				Description:            changed("description", &description),
				Location:               changed("location", &location),
				VolunteerField:         changed("field", &field),
				ProfessionalBackground: changed("background", &background),
				Frequency:              changed("frequency", &frequency),
				Timing:                 changed("timing", &timing),
				Status:                 changed("status", &status),
				StatusNotes:            changed("notes", &notes),
				ActorID:                viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("day") {
				p.Days = &days
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.UpdateJobRequest(ctx, p)
				if err != nil {
					return err
				}
				return printJobRequest(j)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().StringVar(&field, "field", "", "volunteer field")
	cmd.Flags().StringVar(&background, "background", "", "professional background")
	cmd.Flags().StringVar(&frequency, "frequency", "", "frequency")
	cmd.Flags().StringVar(&timing, "timing", "", "timing")
	cmd.Flags().StringArrayVar(&days, "day", []string{}, "required day (repeatable, replaces the set)")
	cmd.Flags().StringVar(&status, "status", "", "new status (Active, In Progress, Fulfilled, Archived)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the status history entry")
	return cmd
}

func jobDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteJobRequest(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func jobMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <id>",
		Short: "Recompute match results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				results, err := e.RunMatching(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(results)
				}
				printMatches(results)
				return nil
			})
		},
	}
}

func jobInviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <id> <candidate-id>",
		Short: "Invite a candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.Invite(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(j)
				}
				printAssignments(j.AssignedSeniors)
				return nil
			})
		},
	}
}

func jobRespondCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "respond <id> <candidate-id> <Accepted|Declined>",
		Short: "Record a candidate's answer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := ""
				if cmd.Flags().Changed("actor-id") {
					actor = viper.GetString("actor-id")
				}
				j, err := e.RecordResponse(ctx, args[0], args[1], args[2], actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(j)
				}
				fmt.Printf("%s is %s\n", j.ID, j.Status)
				return nil
			})
		},
	}
}

func jobInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id> <candidate-id>",
		Short: "Score one candidate against a job request now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.Inspect(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ins)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle(fmt.Sprintf("%s / %s", ins.JobRequest.Title, ins.Candidate.Name))
				tw.AppendHeader(table.Row{"Component", "Score", "Max", "Reason"})
				for _, c := range ins.Breakdown {
					tw.AppendRow(table.Row{c.Name, c.Score, c.Max, c.Reason})
				}
				tw.AppendFooter(table.Row{"total", ins.ScoreDetails.TotalScore, 120, ""})
				tw.Render()
				return nil
			})
		},
	}
}

func candidateCmd() *cobra.Command {
	c := &cobra.Command{Use: "candidate", Short: "Manage candidate profiles"}
	c.AddCommand(candidateImportCmd())
	c.AddCommand(candidateListCmd())
	return c
}

func candidateImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert candidate profiles from a YAML or JSON list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			cs, err := loadCandidates(f)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.ImportCandidates(ctx, cs)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"imported": n})
				}
				fmt.Printf("imported %d candidates\n", n)
				return nil
			})
		},
	}
}

// loadCandidates decodes a YAML sequence of profiles. JSON arrays parse too.
func loadCandidates(r io.Reader) ([]domain.Candidate, error) {
	var cs []domain.Candidate
	if err := yaml.NewDecoder(r).Decode(&cs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return cs, nil
}

func candidateListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidate profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCandidates(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Settlement", "Interests", "Background"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Role, c.Settlement, strings.Join(c.Interests, ", "), c.WorkBackground.Category})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", domain.RoleRetiree, "role filter (empty for all)")
	return cmd
}

func notificationsCmd() *cobra.Command {
	n := &cobra.Command{Use: "notifications", Short: "Read stored notifications"}
	var limit int
	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListNotifications(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Created", "Type", "Message", "Link"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.CreatedAt, it.Type, it.Message, it.Link})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	n.AddCommand(list)
	return n
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Audit event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.ActorID, evt.Payload})
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
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage volunteermatch.yml",
		Long:  "Config sets the match threshold, parallel scorers, notification sinks (store, Redis, webhooks) and the API server.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	var jwtSecret string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			if jwtSecret != "" {
				if err := setEnvValue(filepath.Join(workspace, ".env"), "VOLMATCH_JWT_SECRET", jwtSecret); err != nil {
					return err
				}
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "store a JWT secret in the workspace .env")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOrDefault(workspace)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug || viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer log.Sync()
			if cmd.Flags().Changed("addr") || cfg.Server.Addr == "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") || cfg.Server.BasePath == "" {
				cfg.Server.BasePath = basePath
			}
			if secret := viper.GetString("jwt-secret"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowActorHeader {
				return fmt.Errorf("VOLMATCH_JWT_SECRET or auth.allow_actor_header is required")
			}

			a, err := app.Open(cmd.Context(), app.Options{Workspace: workspace, Config: cfg, Log: log})
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, AllowActorHeader: cfg.Auth.AllowActorHeader, Log: log},
				Log:      log,
				Gatherer: a.Registry,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving volunteer match API",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath),
				zap.Bool("actor_header", cfg.Auth.AllowActorHeader))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	log := logger.Nop()
	if viper.GetBool("verbose") {
		l, err := logger.New(false, true)
		if err != nil {
			return err
		}
		log = l
	}
	a, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Log: log})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func jobRows(items []domain.JobRequest) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, j := range items {
		invited := 0
		for _, a := range j.AssignedSeniors {
			if a.Status == domain.AssignmentInvited {
				invited++
			}
		}
		rows = append(rows, table.Row{j.ID, j.Title, j.Location, j.VolunteerField, j.Status, len(j.MatchResults), invited})
	}
	return rows
}

func printMatches(results []domain.MatchResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Candidate", "Name", "Location", "Score", "Loc", "Int", "Bg", "Days", "Freq", "Hours"})
	for i, m := range results {
		d := m.ScoreDetails
		tw.AppendRow(table.Row{i + 1, m.CandidateID, m.CandidateName, m.CandidateLocation, m.Score,
			d.LocationScore, d.InterestsScore, d.BackgroundScore, d.AvailabilityScore, d.FrequencyScore, d.TimingScore})
	}
	tw.Render()
}

func printJobRequest(j domain.JobRequest) error {
	if viper.GetBool("json") {
		return printJSON(j)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(j.Title)
	tw.AppendRows([]table.Row{
		{"ID", j.ID},
		{"Status", j.Status},
		{"Location", j.Location},
		{"Field", j.VolunteerField},
		{"Background", j.ProfessionalBackground},
		{"Frequency", j.Frequency},
		{"Timing", j.Timing},
		{"Days", strings.Join(j.Days, ", ")},
		{"Created", j.CreatedAt + " by " + j.CreatedBy},
		{"Updated", j.UpdatedAt},
	})
	tw.Render()
	if len(j.StatusHistory) > 0 {
		hw := table.NewWriter()
		hw.SetOutputMirror(os.Stdout)
		hw.AppendHeader(table.Row{"Status", "When", "By", "Notes"})
		for _, h := range j.StatusHistory {
			hw.AppendRow(table.Row{h.Status, h.Timestamp, h.ChangedBy, h.Notes})
		}
		hw.Render()
	}
	printAssignments(j.AssignedSeniors)
	return nil
}

func printAssignments(as []domain.Assignment) {
	if len(as) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Candidate", "Status", "Invited", "Answered"})
	for _, a := range as {
		tw.AppendRow(table.Row{a.CandidateID, a.Status, a.AssignedAt, a.ResponseAt})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setEnvValue sets key in the dotenv file at path, keeping other entries.
func setEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		env = map[string]string{}
	}
	env[key] = value
	return godotenv.Write(env, path)
}
