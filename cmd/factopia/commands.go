package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/factopia/internal/config"
	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/settings"
	"github.com/verte-zerg/factopia/internal/stats"
	"github.com/verte-zerg/factopia/internal/statsui"
	"github.com/verte-zerg/factopia/internal/tui"
)

const (
	defaultCurveWindow = 5
	defaultReviewLimit = 10
)

var (
	reviewCategory string
	reviewLimit    int

	statsCategory    string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	categoriesGroup string

	mistakesClear   string
	favoritesToggle string
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Replay questions from the mistake book",
		Args:  cobra.NoArgs,
		RunE:  runReviewCmd,
	}
	cmd.Flags().StringVarP(&reviewCategory, "category", "c", "", "category id")
	cmd.Flags().IntVar(&reviewLimit, "limit", defaultReviewLimit, "maximum questions per review (0 = all)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func runReviewCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadGameConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, fileCfg, gameDataDir, gamePassAccuracy, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cat, ok := a.bank.Category(ctx, reviewCategory)
	if !ok {
		return fmt.Errorf("unknown category %q", reviewCategory)
	}
	ids := stats.SelectReviewQuestions(a.ledger.Mistakes(), cat.ID, reviewLimit)
	if len(ids) == 0 {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "No mistakes to review in %s.\n", cat.Name)
		return err
	}
	qs := a.bank.QuestionsByIDs(ctx, cat.ID, ids)
	if len(qs) == 0 {
		return fmt.Errorf("none of the %d recorded mistakes exist in the %s question pack", len(ids), cat.ID)
	}
	m := tui.NewModel(tui.Options{Category: cat, Questions: qs, Review: true}, a.ledger, nil, a.settings, a.log)
	if err := runProgram(m); err != nil {
		return err
	}
	printResult(cmd, m)
	return nil
}

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories, levels and best scores",
		Args:  cobra.NoArgs,
		RunE:  runCategoriesCmd,
	}
	cmd.Flags().StringVarP(&categoriesGroup, "group", "g", "", "only list categories of this group")
	return cmd
}

func runCategoriesCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadGameConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, fileCfg, gameDataDir, gamePassAccuracy, false)
	if err != nil {
		return err
	}
	defer a.Close()

	cats := a.bank.Categories(ctx)
	if len(cats) == 0 {
		return fmt.Errorf("no categories found in %s", a.bank.Dir())
	}
	if categoriesGroup != "" {
		cats = a.bank.CategoriesInGroup(ctx, categoriesGroup)
		if len(cats) == 0 {
			return fmt.Errorf("unknown group %q (available: %s)", categoriesGroup, strings.Join(a.bank.Groups(ctx), ", "))
		}
	}
	w := cmd.OutOrStdout()
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		cleared := 0
		for _, lvl := range c.Levels {
			if p, ok := a.ledger.Level(c.ID, lvl.ID); ok && p.Score > 0 {
				cleared++
			}
		}
		rows = append(rows, []string{
			c.ID,
			strings.TrimSpace(c.Icon + " " + c.Name),
			c.GroupID,
			fmt.Sprintf("%d/%d", cleared, len(c.Levels)),
			fmt.Sprintf("%d", len(a.ledger.MistakesFor(c.ID))),
		})
	}
	for _, line := range stats.FormatTable([]string{"ID", "Name", "Group", "Cleared", "Mistakes"}, rows, map[int]bool{3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return stats.RenderLevelTable(w, cats, a.ledger.Levels())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVarP(&statsCategory, "category", "c", "", "category filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	cfg := model.StatsConfig{
		CategoryID:  statsCategory,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	fileCfg, err := loadGameConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, fileCfg, gameDataDir, gamePassAccuracy, !statsPlain)
	if err != nil {
		return err
	}
	defer a.Close()

	if statsPlain {
		return renderPlainStats(ctx, cmd.OutOrStdout(), a, cfg)
	}
	m := statsui.NewModel(a.ledger, a.runSource(), a.bank, a.settings.Theme(), cfg)
	defer m.Close()
	return runProgram(m)
}

func renderPlainStats(ctx context.Context, w io.Writer, a *app, cfg model.StatsConfig) error {
	report, err := stats.BuildReport(ctx, a.runSource(), a.ledger, cfg)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := stats.RenderSummary(w, report); err != nil {
		return err
	}
	if err := stats.RenderCurves(w, report.Runs, cfg.CurveWindow); err != nil {
		return err
	}
	cats := a.bank.Categories(ctx)
	if cfg.CategoryID != "" {
		if c, ok := a.bank.Category(ctx, cfg.CategoryID); ok {
			cats = []model.Category{c}
		} else {
			cats = nil
		}
	}
	if err := stats.RenderLevelTable(w, cats, report.Progress.Levels); err != nil {
		return err
	}
	return stats.RenderMistakeTable(w, filterByCategory(report.Progress.Mistakes, cfg.CategoryID), a.prompt)
}

func newGalleryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gallery <category>",
		Short: "Browse the fact cards of a category",
		Args:  cobra.ExactArgs(1),
		RunE:  runGalleryCmd,
	}
}

func runGalleryCmd(cmd *cobra.Command, args []string) error {
	return withPlainApp(cmd, func(ctx context.Context, a *app) error {
		cat, ok := a.bank.Category(ctx, args[0])
		if !ok {
			return fmt.Errorf("unknown category %q (available: %s)", args[0], categoryIDs(a.bank.Categories(ctx)))
		}
		w := cmd.OutOrStdout()
		items := a.bank.Gallery(ctx, cat.ID)
		if len(items) == 0 {
			_, err := fmt.Fprintf(w, "No gallery for %s.\n", cat.Name)
			return err
		}
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{string(item.ID), item.Name, item.Description, item.Image})
		}
		for _, line := range stats.FormatTable([]string{"ID", "Name", "Description", "Image"}, rows, nil) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	})
}

func newMistakesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mistakes",
		Short: "List or clear mistake book entries",
		Args:  cobra.NoArgs,
		RunE:  runMistakesCmd,
	}
	cmd.Flags().StringVar(&mistakesClear, "clear", "", "remove an entry (category:question)")
	return cmd
}

func runMistakesCmd(cmd *cobra.Command, _ []string) error {
	return withPlainApp(cmd, func(ctx context.Context, a *app) error {
		if mistakesClear != "" {
			cat, q, err := model.ParseRecordRef(mistakesClear)
			if err != nil {
				return err
			}
			a.ledger.ClearMistake(ctx, cat, q)
			return savedOrWarn(a.ledger)
		}
		return stats.RenderMistakeTable(cmd.OutOrStdout(), a.ledger.Mistakes(), a.prompt)
	})
}

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List or toggle favorite questions",
		Args:  cobra.NoArgs,
		RunE:  runFavoritesCmd,
	}
	cmd.Flags().StringVar(&favoritesToggle, "toggle", "", "add or remove a favorite (category:question)")
	return cmd
}

func runFavoritesCmd(cmd *cobra.Command, _ []string) error {
	return withPlainApp(cmd, func(ctx context.Context, a *app) error {
		w := cmd.OutOrStdout()
		if favoritesToggle != "" {
			cat, q, err := model.ParseRecordRef(favoritesToggle)
			if err != nil {
				return err
			}
			state := "removed from"
			if a.ledger.ToggleFavorite(ctx, cat, q) {
				state = "added to"
			}
			if _, err := fmt.Fprintf(w, "%s:%s %s favorites\n", cat, q, state); err != nil {
				return err
			}
			return savedOrWarn(a.ledger)
		}
		favs := a.ledger.Favorites()
		if len(favs) == 0 {
			_, err := fmt.Fprintln(w, "No favorites yet.")
			return err
		}
		rows := stats.MistakeRows(favs, a.prompt)
		for _, line := range stats.FormatTable([]string{"Category", "Question", "Prompt", "Added"}, rows, nil) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPlainApp(cmd, func(_ context.Context, a *app) error {
				return printSettings(cmd.OutOrStdout(), a.settings)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "sound [on|off|toggle]",
		Short:     "Show or set answer sounds",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE:      runSoundCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "theme [pixel|modern|clay|next]",
		Short:     "Show or set the UI theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"pixel", "modern", "clay", "next"},
		RunE:      runThemeCmd,
	})
	return cmd
}

func runSoundCmd(cmd *cobra.Command, args []string) error {
	return withPlainApp(cmd, func(ctx context.Context, a *app) error {
		if len(args) == 1 {
			current := a.settings.SoundEnabled()
			switch args[0] {
			case "on":
				if !current {
					a.settings.ToggleSound(ctx)
				}
			case "off":
				if current {
					a.settings.ToggleSound(ctx)
				}
			case "toggle":
				a.settings.ToggleSound(ctx)
			default:
				return fmt.Errorf("sound must be on, off or toggle (got %q)", args[0])
			}
		}
		return printSettings(cmd.OutOrStdout(), a.settings)
	})
}

func runThemeCmd(cmd *cobra.Command, args []string) error {
	return withPlainApp(cmd, func(ctx context.Context, a *app) error {
		if len(args) == 1 {
			if args[0] == "next" {
				a.settings.ToggleTheme(ctx)
			} else if err := a.settings.SwitchTheme(ctx, args[0]); err != nil {
				return err
			}
		}
		return printSettings(cmd.OutOrStdout(), a.settings)
	})
}

func printSettings(w io.Writer, s *settings.Settings) error {
	sound := "on"
	if !s.SoundEnabled() {
		sound = "off"
	}
	if _, err := fmt.Fprintf(w, "sound: %s\ntheme: %s\n", sound, s.Theme()); err != nil {
		return err
	}
	if err := s.Degraded(); err != nil {
		logErrf("warning: settings were not saved: %v\n", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# factopia configuration
# Uncomment a value to enable it. CLI flags override config values.

[game]
# data-dir = %q
# shuffle = false         # Shuffle question and option order
# pass-accuracy = %d      # Accuracy (%%) needed to unlock the next level

[store]
# backend = "sqlite"      # sqlite, redis or memory
# path = %q
# redis-addr = %q
# redis-password = ""
# redis-db = 0

[log]
# level = "warn"          # debug, info, warn, error
# file = %q
`,
		config.DefaultDataDir(),
		progress.DefaultPassAccuracy,
		config.DefaultDBPath(),
		defaultRedisAddr,
		config.DefaultLogPath(),
	)
}

// withPlainApp opens the app for a non-interactive command.
func withPlainApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	fileCfg, err := loadGameConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, fileCfg, gameDataDir, gamePassAccuracy, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func savedOrWarn(ledger *progress.Ledger) error {
	if err := ledger.Degraded(); err != nil {
		return fmt.Errorf("change applied for this session only: %w", err)
	}
	return nil
}

func filterByCategory(recs []model.Record, categoryID string) []model.Record {
	if categoryID == "" {
		return recs
	}
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	return out
}

func (a *app) prompt(categoryID, questionID string) string {
	if categoryID == "" {
		return ""
	}
	q, ok := a.bank.Question(context.Background(), categoryID, questionID)
	if !ok {
		return ""
	}
	return q.Prompt
}
