package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conecta/internal/domain"
	"conecta/internal/engine"
	"conecta/internal/repo"
)

func analysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Requirements conversation",
		Long:  "Talk to the assistant about a project until it can break it into sub-tasks, then publish them.",
	}
	cmd.AddCommand(analysisStartCmd())
	cmd.AddCommand(analysisContinueCmd())
	cmd.AddCommand(analysisPublishCmd())
	cmd.AddCommand(analysisHistoryCmd())
	return cmd
}

func analysisStartCmd() *cobra.Command {
	var clientID int64
	var message string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a conversation for a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), true, func(ctx context.Context, e engine.Engine) error {
				res, err := e.StartAnalysis(ctx, clientID, message)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Proyecto %d\n\n%s\n", res.ProjectID, res.Reply)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&clientID, "client", 0, "client id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "opening message")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func analysisContinueCmd() *cobra.Command {
	var projectID int64
	var message string
	cmd := &cobra.Command{
		Use:   "continue",
		Short: "Answer the assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), true, func(ctx context.Context, e engine.Engine) error {
				res, err := e.ContinueAnalysis(ctx, projectID, message)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.Reply)
				if res.Finished {
					fmt.Println()
					fmt.Println(res.Summary)
					for _, w := range res.Warnings {
						fmt.Println("warning:", w)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "reply to the assistant")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func analysisPublishCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Open a decomposed project's sub-tasks to vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				res, err := e.PublishProject(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Proyecto %d publicado: %d sub-tareas disponibles\n", res.Project.ID, res.Published)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func analysisHistoryCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the analysis conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				turns, err := e.History(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(turns)
				}
				for _, t := range turns {
					fmt.Printf("[%s] %s: %s\n\n", t.TS, t.Emitter, t.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func subtaskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "subtask", Short: "Browse and work sub-tasks"}
	cmd.AddCommand(subtaskAvailableCmd())
	cmd.AddCommand(subtaskBoardCmd())
	cmd.AddCommand(subtaskAcceptCmd())
	cmd.AddCommand(subtaskProgressCmd())
	cmd.AddCommand(subtaskShowCmd())
	return cmd
}

func printSubtasks(items []domain.Subtask) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Code", "Title", "Specialty", "Priority", "Status", "Hours", "Vendor")
	for _, s := range items {
		vendor := ""
		if s.VendorID != nil {
			vendor = fmt.Sprint(*s.VendorID)
		}
		tw.AppendRow(table.Row{s.ID, s.Code, s.Title, s.Specialty, s.Priority, s.Status, s.EstimateHours, vendor})
	}
	tw.Render()
	return nil
}

func subtaskAvailableCmd() *cobra.Command {
	var specialty, priority string
	var vendorID int64
	cmd := &cobra.Command{
		Use:   "available",
		Short: "List open sub-tasks, or a vendor's own with --vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.Subtask
					err   error
				)
				if vendorID > 0 {
					items, err = e.VendorSubtasks(ctx, vendorID, "")
				} else {
					items, err = e.AvailableSubtasks(ctx, specialty, priority)
				}
				if err != nil {
					return err
				}
				return printSubtasks(items)
			})
		},
	}
	cmd.Flags().StringVar(&specialty, "specialty", "", "specialty name or code")
	cmd.Flags().StringVar(&priority, "priority", "", "ALTA, MEDIA or BAJA")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "list this vendor's sub-tasks instead")
	return cmd
}

func subtaskBoardCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "board",
		Short: "A project's sub-tasks and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				board, err := e.ProjectBoard(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				fmt.Printf("%s [%s] %d%%\n", board.Project.Title, board.Project.Phase, board.Progress)
				return printSubtasks(board.Subtasks)
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func subtaskAcceptCmd() *cobra.Command {
	var subtaskID, vendorID int64
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Take an open sub-task as a vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				s, err := e.AcceptSubtask(ctx, subtaskID, vendorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Int64Var(&subtaskID, "subtask", 0, "sub-task id")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "vendor id")
	_ = cmd.MarkFlagRequired("subtask")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}

func subtaskProgressCmd() *cobra.Command {
	var opts engine.ProgressOptions
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Move an assigned sub-task forward",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateProgress(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.SubtaskID, "subtask", 0, "sub-task id")
	cmd.Flags().Int64Var(&opts.VendorID, "vendor", 0, "assigned vendor id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "EN_PROGRESO, EN_REVISION or COMPLETADO")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "progress notes for the client")
	_ = cmd.MarkFlagRequired("subtask")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func subtaskShowCmd() *cobra.Command {
	var subtaskID int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a sub-task with its project and vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				d, err := e.SubtaskDetail(ctx, subtaskID)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().Int64Var(&subtaskID, "subtask", 0, "sub-task id")
	_ = cmd.MarkFlagRequired("subtask")
	return cmd
}

func requestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "request", Short: "Vendor work requests"}
	cmd.AddCommand(requestSendCmd())
	cmd.AddCommand(requestRespondCmd())
	cmd.AddCommand(requestListCmd())
	return cmd
}

func requestSendCmd() *cobra.Command {
	var subtaskID, vendorID int64
	var message string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Ask to work on an open sub-task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				w, err := e.SendRequest(ctx, subtaskID, vendorID, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().Int64Var(&subtaskID, "subtask", 0, "sub-task id")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "vendor id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "note for the client")
	_ = cmd.MarkFlagRequired("subtask")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}

func requestRespondCmd() *cobra.Command {
	var requestID int64
	var action, reason string
	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Accept or reject a work request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				res, err := e.RespondRequest(ctx, requestID, action, reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().Int64Var(&requestID, "request", 0, "request id")
	cmd.Flags().StringVar(&action, "action", "", "ACEPTAR or RECHAZAR")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func requestListCmd() *cobra.Command {
	var projectID, vendorID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Pending requests of a project, or all of a vendor's",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (projectID == 0) == (vendorID == 0) {
				return fmt.Errorf("exactly one of --project or --vendor is required")
			}
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				var (
					items []repo.RequestView
					err   error
				)
				if vendorID > 0 {
					items, err = e.VendorRequests(ctx, vendorID)
				} else {
					items, err = e.ProjectRequests(ctx, projectID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Sub-task", "Vendor", "Status", "Message", "Requested")
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.SubtaskCode, r.VendorName, r.Status, r.Message, r.RequestedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "vendor id")
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Inspect and cancel projects"}
	cmd.AddCommand(projectShowCmd())
	cmd.AddCommand(projectCancelCmd())
	return cmd
}

func projectShowCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func projectCancelCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an unfinished project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), false, func(ctx context.Context, e engine.Engine) error {
				res, err := e.CancelProject(ctx, projectID, "cli")
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
