package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conecta/internal/app"
	"conecta/internal/catalog"
	"conecta/internal/config"
	"conecta/internal/engine"
	"conecta/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "conecta",
	Short: "Conecta marketplace CLI",
	Long: `Conecta turns a client's project idea into specialty-tagged sub-tasks through a
guided conversation, then lets vendors request, take and deliver that work.
- Analysis: the assistant asks questions until it can decompose the project (conecta analysis).
- Publishing: a decomposed project opens its sub-tasks to vendors.
- Requests: vendors ask for a sub-task; the client accepts one and the rest are closed.
- Progress: vendors move their sub-tasks to done; the project completes with the last one.
- Event log: every change is recorded, view with 'conecta log tail'.`,
	SilenceUsage: true,
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
	viper.SetEnvPrefix("CONECTA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to conecta.yml in the workspace)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("llm-provider", "", "override llm.provider (openai, echo)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("llm-provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(vendorCmd())
	rootCmd.AddCommand(specialtiesCmd())
	rootCmd.AddCommand(analysisCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
}

func runtimeOptions(requireLLM bool) app.Options {
	return app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Provider:   viper.GetString("llm-provider"),
		RequireLLM: requireLLM,
	}
}

func withEngine(ctx context.Context, requireLLM bool, fn func(context.Context, engine.Engine) error) error {
	rt, err := app.Open(runtimeOptions(requireLLM))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Open(runtimeOptions(true))
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr == "" {
				addr = rt.Config.Server.Addr
			}
			if basePath == "" {
				basePath = rt.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret"), Log: rt.Log}
			if authCfg.JWTSecret == "" {
				rt.Log.Warn("CONECTA_JWT_SECRET not set; the API runs without authentication")
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: basePath,
				Auth:     authCfg,
				Log:      rt.Log,
				Metrics:  rt.Metrics,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			rt.Log.Info("serving conecta api", "addr", addr, "base_path", basePath, "provider", rt.Config.LLM.Provider)
			fmt.Printf("Serving Conecta API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long:  "Config lives in conecta.yml in the workspace: server address, database, log mode, LLM provider and analysis thresholds.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
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
		Short: "Write a default conecta.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
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

func specialtiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specialties",
		Short: "List the specialty catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := catalog.All()
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable("Code", "Name")
			for _, s := range items {
				tw.AppendRow(table.Row{s.Code, s.Name})
			}
			tw.Render()
			return nil
		},
	}
}

func vendorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "vendor", Short: "Manage vendors"}
	cmd.AddCommand(vendorAddCmd())
	cmd.AddCommand(vendorListCmd())
	return cmd
}

func vendorAddCmd() *cobra.Command {
	var name, email string
	var specialties []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				v, err := e.RegisterVendor(ctx, name, email, specialties)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "vendor name")
	cmd.Flags().StringVar(&email, "email", "", "vendor email")
	cmd.Flags().StringSliceVar(&specialties, "specialty", nil, "specialty name or code (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func vendorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVendors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Email", "Specialties")
				for _, v := range items {
					tw.AppendRow(table.Row{v.ID, v.Name, v.Email, strings.Join(v.Specialties, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened to a project: analysis turns, publishing, requests, assignments and progress.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var projectID, before int64
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail a project's events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				events, err := e.ProjectEvents(ctx, projectID, n, before)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	cmd.Flags().Int64Var(&before, "before", 0, "only events older than this id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Bearer tokens for the API"}
	var role string
	var uid int64
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token with CONECTA_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.SignToken(viper.GetString("jwt-secret"), role, uid, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().StringVar(&role, "role", server.RoleClient, "cliente or vendedor")
	issue.Flags().Int64Var(&uid, "uid", 0, "client or vendor id")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for none)")
	_ = issue.MarkFlagRequired("uid")
	cmd.AddCommand(issue)
	return cmd
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return printJSON(v)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := newTable("Field", "Value")
	for _, k := range keys {
		val := string(fields[k])
		var s string
		if json.Unmarshal(fields[k], &s) == nil {
			val = s
		}
		tw.AppendRow(table.Row{k, val})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
