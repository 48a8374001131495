package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bucket-list/internal/config"
	"bucket-list/internal/logger"
	"bucket-list/internal/model"
	"bucket-list/internal/service"
	"bucket-list/internal/stats"
	"bucket-list/internal/store"
)

// withApp opens the stores for one command and flushes them afterwards.
func withApp(cmd *cobra.Command, fn func(cfg config.Config, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, serviceName, cfg.LogLevel)
	a, err := openApp(cmd.Context(), cfg.DatabaseURL, log, store.WithLogger(log))
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cfg, a)
}

func newDataCmds() []*cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add an activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runAdd(a, cmd.OutOrStdout(), strings.Join(args, " "), category)
			})
		},
	}
	addCmd.Flags().StringP("category", "c", string(model.CategoryOther), "adventure, beach, food, travel, fun or other")

	listCmd := &cobra.Command{
		Use:   "list [all|completed|pending]",
		Short: "List activities, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := ""
			if len(args) == 1 {
				mode = args[0]
			}
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runList(a, cmd.OutOrStdout(), mode)
			})
		},
	}

	doneCmd := &cobra.Command{
		Use:   "done <n>",
		Short: "Toggle completion of the n-th listed activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runDone(a, cmd.OutOrStdout(), args[0])
			})
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit <n> <json-patch>",
		Short: `Update fields, e.g. edit 2 '{"notes":"with Sam","photo":null}'`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runEdit(a, cmd.OutOrStdout(), args[0], args[1])
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <n>",
		Short: "Remove the n-th listed activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runRemove(a, cmd.OutOrStdout(), args[0])
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print progress, category breakdown and achievements as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(cfg config.Config, a *app) error {
				return runStats(a, cmd.OutOrStdout(), cfg)
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write all activities as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ config.Config, a *app) error {
				return service.NewProfileService(a.activities, a.settings).Export(cmd.OutOrStdout())
			})
		},
	}

	settingsCmd := &cobra.Command{
		Use:   "settings [json-patch]",
		Short: `Show or update settings, e.g. settings '{"darkMode":true}'`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := ""
			if len(args) == 1 {
				patch = args[0]
			}
			return withApp(cmd, func(_ config.Config, a *app) error {
				return runSettings(a, cmd.OutOrStdout(), patch)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every activity and reset settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			return withApp(cmd, func(_ config.Config, a *app) error {
				service.NewProfileService(a.activities, a.settings).ClearAllData()
				fmt.Fprintln(cmd.OutOrStdout(), "All data has been cleared.")
				return nil
			})
		},
	}
	clearCmd.Flags().Bool("yes", false, "confirm deletion")

	return []*cobra.Command{addCmd, listCmd, doneCmd, editCmd, removeCmd, statsCmd, exportCmd, settingsCmd, clearCmd}
}

func runAdd(a *app, out io.Writer, text, category string) error {
	act, err := a.activities.Add(text, model.ParseCategory(category), nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s (%s)\n", act.Text, act.Category.Label())
	return nil
}

func runList(a *app, out io.Writer, rawMode string) error {
	mode, err := stats.ParseMode(rawMode)
	if err != nil {
		return err
	}
	shown := 0
	for i, act := range stats.SortForDisplay(a.activities.Snapshot()) {
		if len(stats.Filter([]model.Activity{act}, mode)) == 0 {
			continue
		}
		mark := " "
		if act.Completed {
			mark = "x"
		}
		fmt.Fprintf(out, "%d. [%s] %s (%s)\n", i+1, mark, act.Text, act.Category)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(out, "nothing here yet")
	}
	return nil
}

func runDone(a *app, out io.Writer, rawN string) error {
	act, err := nth(a, rawN)
	if err != nil {
		return err
	}
	updated, err := a.activities.ToggleCompletion(act.ID)
	if err != nil {
		return err
	}
	state := "pending"
	if updated.Completed {
		state = "completed"
	}
	fmt.Fprintf(out, "%s is %s\n", updated.Text, state)
	return nil
}

func runEdit(a *app, out io.Writer, rawN, rawPatch string) error {
	act, err := nth(a, rawN)
	if err != nil {
		return err
	}
	patch, err := model.ParseActivityPatch([]byte(rawPatch))
	if err != nil {
		return err
	}
	updated, err := a.activities.UpdateFields(act.ID, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %s\n", updated.Text)
	return nil
}

func runRemove(a *app, out io.Writer, rawN string) error {
	act, err := nth(a, rawN)
	if err != nil {
		return err
	}
	if err := a.activities.Remove(act.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s\n", act.Text)
	return nil
}

type statsReport struct {
	Progress     stats.Progress            `json:"progress"`
	Summary      stats.Summary             `json:"summary"`
	Achievements []stats.AchievementStatus `json:"achievements"`
}

func runStats(a *app, out io.Writer, cfg config.Config) error {
	items := a.activities.Snapshot()
	summary := stats.Summarize(items, cfg.Location())
	report := statsReport{
		Progress:     stats.ComputeProgress(items),
		Summary:      summary,
		Achievements: stats.Achievements(summary),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runSettings(a *app, out io.Writer, rawPatch string) error {
	current := a.settings.Get()
	if rawPatch != "" {
		patch, err := model.ParseSettingsPatch([]byte(rawPatch))
		if err != nil {
			return err
		}
		current = a.settings.Update(patch)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(current)
}

// nth resolves a 1-based position in display order.
func nth(a *app, raw string) (model.Activity, error) {
	n, err := strconv.Atoi(raw)
	items := stats.SortForDisplay(a.activities.Snapshot())
	if err != nil || n < 1 || n > len(items) {
		return model.Activity{}, fmt.Errorf("no activity %q: %w", raw, store.ErrNotFound)
	}
	return items[n-1], nil
}
