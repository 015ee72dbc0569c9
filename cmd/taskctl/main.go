package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"taskmanager/internal/client"
	dom "taskmanager/internal/domain"
	"taskmanager/internal/dto"
	"taskmanager/internal/repo"

	"github.com/spf13/cobra"
)

var Version = "dev"

// cli holds what every command needs once flags are parsed.
type cli struct {
	configPath string
	server     string
	mock       bool
	asJSON     bool

	api      client.API
	sessions client.SessionStore
	close    func()
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one invocation and releases whatever setup opened.
func execute(args []string, opts ...func(*cobra.Command)) error {
	c := &cli{}
	cmd := c.rootCmd()
	cmd.SetArgs(args)
	for _, o := range opts {
		o(cmd)
	}
	defer func() {
		if c.close != nil {
			c.close()
		}
	}()
	return cmd.Execute()
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "taskctl",
		Short:             "Command-line client for the Task Manager API",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", filepath.Join(defaultDir(), "config.yaml"), "Config file")
	rootCmd.PersistentFlags().StringVar(&c.server, "server", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&c.mock, "mock", false, "Use the in-process API backed by a local SQLite file")
	rootCmd.PersistentFlags().BoolVarP(&c.asJSON, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(c.loginCmd())
	rootCmd.AddCommand(c.registerCmd())
	rootCmd.AddCommand(c.logoutCmd())
	rootCmd.AddCommand(c.passwdCmd())
	rootCmd.AddCommand(c.whoamiCmd())
	rootCmd.AddCommand(c.tasksCmd())
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.server != "" {
		cfg.Server = c.server
	}
	if cmd.Flags().Changed("mock") {
		cfg.Mock = c.mock
	}

	c.sessions = client.NewFileSessionStore(cfg.SessionFile)
	if !cfg.Mock {
		c.api = client.NewCachedAPI(client.NewHTTPClient(cfg.Server, c.sessions))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MockDB), 0o700); err != nil {
		return err
	}
	db, err := repo.OpenSQLite(cfg.MockDB)
	if err != nil {
		return err
	}
	c.close = func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	c.api = client.NewCachedAPI(client.NewMock(client.MockOptions{
		Users: repo.NewGormUserRepo(db),
		Tasks: repo.NewGormTaskRepo(db),
	}, c.sessions))
	return nil
}

func (c *cli) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

// requireLogin is a local convenience check; the server enforces access regardless.
func (c *cli) requireLogin() error {
	s, err := c.sessions.Load()
	if err != nil {
		return err
	}
	if !s.LoggedIn() {
		return errors.New("not logged in: run `taskctl login` first")
	}
	return nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			s, err := c.api.Login(ctx, email, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", s.User.Name, s.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			s, err := c.api.Register(ctx, name, email, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <%s>\n", s.User.Name, s.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			if err := c.api.Logout(ctx); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) passwdCmd() *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			if err := c.api.ChangePassword(ctx, current, next); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "Current password")
	cmd.Flags().StringVar(&next, "new", "", "New password")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.sessions.Load()
			if err != nil {
				return err
			}
			if !s.LoggedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", s.User.Name, s.User.Email, s.User.ID)
			return nil
		},
	}
}

func (c *cli) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Manage your tasks",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, args); err != nil {
				return err
			}
			return c.requireLogin()
		},
	}
	cmd.AddCommand(c.tasksListCmd(), c.tasksGetCmd(), c.tasksCreateCmd(), c.tasksUpdateCmd(), c.tasksDeleteCmd())
	return cmd
}

func (c *cli) tasksListCmd() *cobra.Command {
	var q dto.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			list, err := c.api.ListTasks(ctx, q)
			if err != nil {
				return describe(err)
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			printTasks(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Status, "status", "s", "", "Filter by status (pending, in-progress, completed)")
	cmd.Flags().StringVar(&q.SortBy, "sort-by", "", "createdAt or deadline")
	cmd.Flags().StringVar(&q.SortDir, "sort-dir", "", "asc or desc")
	return cmd
}

func (c *cli) tasksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			t, err := c.api.GetTask(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func (c *cli) tasksCreateCmd() *cobra.Command {
	var d client.TaskDraft
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Title = args[0]
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			t, err := c.api.CreateTask(ctx, d)
			if err != nil {
				return describe(err)
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVarP(&d.Description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&d.Status, "status", "s", "", "Status (default pending)")
	cmd.Flags().StringVar(&d.Deadline, "deadline", "", "Deadline, YYYY-MM-DD or RFC3339")
	return cmd
}

func (c *cli) tasksUpdateCmd() *cobra.Command {
	var (
		title, description, status, deadline string
		ch                                   client.TaskChanges
	)
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("title") {
				ch.Title = &title
			}
			if flags.Changed("description") {
				ch.Description = &description
			}
			if flags.Changed("status") {
				ch.Status = &status
			}
			if flags.Changed("deadline") {
				ch.Deadline = &deadline
			}
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			t, err := c.api.UpdateTask(ctx, args[0], ch)
			if err != nil {
				return describe(err)
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	cmd.Flags().StringVar(&deadline, "deadline", "", "New deadline, YYYY-MM-DD or RFC3339")
	cmd.Flags().BoolVar(&ch.ClearDescription, "clear-description", false, "Remove the description")
	cmd.Flags().BoolVar(&ch.ClearDeadline, "clear-deadline", false, "Remove the deadline")
	return cmd
}

func (c *cli) tasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [id]",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			if err := c.api.DeleteTask(ctx, args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task deleted")
			return nil
		},
	}
}

// describe reduces err to the message the server (or the in-process API) gave.
func describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}
	return errors.New(dom.Message(err))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(w io.Writer, list []dto.TaskResponse) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDEADLINE\tTITLE")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Status, formatDeadline(t.Deadline), t.Title)
	}
	_ = tw.Flush()
}

func printTask(w io.Writer, t dto.TaskResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != nil {
		fmt.Fprintf(tw, "Description:\t%s\n", *t.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status)
	fmt.Fprintf(tw, "Deadline:\t%s\n", formatDeadline(t.Deadline))
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Updated:\t%s\n", t.UpdatedAt.Local().Format(time.DateTime))
	_ = tw.Flush()
}

func formatDeadline(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format(time.DateOnly)
}
