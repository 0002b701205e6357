// Package main provides the CLI entrypoint for factopia.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/factopia/internal/config"
	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/questions"
	"github.com/verte-zerg/factopia/internal/tui"
)

var (
	gameDataDir      string
	gameCategory     string
	gameLevel        string
	gameShuffle      bool
	gamePassAccuracy int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "factopia",
		Short:         "Terminal trivia game",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.PersistentFlags().StringVar(&gameDataDir, "data-dir", config.DefaultDataDir(), "question pack directory")
	rootCmd.PersistentFlags().IntVar(&gamePassAccuracy, "pass-accuracy", progress.DefaultPassAccuracy, "accuracy (%) needed to unlock the next level")
	rootCmd.Flags().StringVarP(&gameCategory, "category", "c", "", "category id")
	rootCmd.Flags().StringVarP(&gameLevel, "level", "l", "", "level id (default: first unlocked level not yet cleared)")
	rootCmd.Flags().BoolVar(&gameShuffle, "shuffle", false, "shuffle question and option order")

	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newGalleryCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newMistakesCmd())
	rootCmd.AddCommand(newFavoritesCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadGameConfig reads the config file and applies it to flags the user did
// not set.
func loadGameConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "data-dir", &gameDataDir, fileCfg.Game.DataDir)
	applyIntConfig(cmd, "pass-accuracy", &gamePassAccuracy, fileCfg.Game.PassAccuracy)
	applyBoolConfig(cmd, "shuffle", &gameShuffle, fileCfg.Game.Shuffle)
	if gamePassAccuracy < 0 || gamePassAccuracy > 100 {
		return config.FileConfig{}, fmt.Errorf("--pass-accuracy must be between 0 and 100")
	}
	return fileCfg, nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
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

	cfg := model.GameConfig{
		DataDir:      gameDataDir,
		CategoryID:   gameCategory,
		LevelID:      gameLevel,
		Shuffle:      gameShuffle,
		PassAccuracy: gamePassAccuracy,
	}
	opts, err := resolvePlay(ctx, a.bank, a.ledger, cfg)
	if err != nil {
		return err
	}
	if cfg.Shuffle {
		opts.Questions = shuffle(opts.Questions)
	}
	m := tui.NewModel(opts, a.ledger, a.recorder(), a.settings, a.log)
	if err := runProgram(m); err != nil {
		return err
	}
	printResult(cmd, m)
	return nil
}

// resolvePlay picks the category and level to play and loads its questions.
func resolvePlay(ctx context.Context, bank *questions.Bank, ledger *progress.Ledger, cfg model.GameConfig) (tui.Options, error) {
	cats := bank.Categories(ctx)
	if len(cats) == 0 {
		return tui.Options{}, fmt.Errorf("no categories found in %s", bank.Dir())
	}
	if cfg.CategoryID == "" {
		if len(cats) > 1 {
			return tui.Options{}, fmt.Errorf("--category is required (available: %s)", categoryIDs(cats))
		}
		cfg.CategoryID = cats[0].ID
	}
	cat, ok := bank.Category(ctx, cfg.CategoryID)
	if !ok {
		return tui.Options{}, fmt.Errorf("unknown category %q (available: %s)", cfg.CategoryID, categoryIDs(cats))
	}
	if len(cat.Levels) == 0 {
		return tui.Options{}, fmt.Errorf("category %q has no levels", cat.ID)
	}

	idx := -1
	if cfg.LevelID == "" {
		idx = defaultLevelIndex(ledger, cat)
	} else {
		for i, lvl := range cat.Levels {
			if lvl.ID == cfg.LevelID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return tui.Options{}, fmt.Errorf("unknown level %q in category %q", cfg.LevelID, cat.ID)
		}
		if !ledger.IsUnlocked(cat.ID, cfg.LevelID, idx) {
			return tui.Options{}, fmt.Errorf("level %q is locked; reach %d%% accuracy on the previous level first", cfg.LevelID, ledger.PassAccuracy())
		}
	}
	lvl := cat.Levels[idx]
	qs := bank.QuestionsByLevel(ctx, cat.ID, lvl.ID)
	if len(qs) == 0 {
		return tui.Options{}, fmt.Errorf("no questions found for %s/%s", cat.ID, lvl.ID)
	}
	return tui.Options{
		Category:    cat,
		LevelID:     lvl.ID,
		LevelName:   lvl.Name,
		NextLevelID: bank.NextLevel(ctx, cat.ID, lvl.ID),
		Questions:   qs,
	}, nil
}

// defaultLevelIndex returns the first unlocked level without a score, or the
// last unlocked level when every unlocked level has been cleared.
func defaultLevelIndex(ledger *progress.Ledger, cat model.Category) int {
	last := 0
	for i, lvl := range cat.Levels {
		if !ledger.IsUnlocked(cat.ID, lvl.ID, i) {
			break
		}
		last = i
		if p, ok := ledger.Level(cat.ID, lvl.ID); !ok || p.Score == 0 {
			return i
		}
	}
	return last
}

func shuffle(qs []model.Question) []model.Question {
	s := questions.NewShuffler()
	out := s.Questions(qs)
	for i := range out {
		out[i] = s.Options(out[i])
	}
	return out
}

func runProgram(m tea.Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func printResult(cmd *cobra.Command, m *tui.Model) {
	res, ok := m.Result()
	if !ok {
		return
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Score %d · Accuracy %d%% · %d/%d correct\n", res.Score, res.Accuracy, res.Correct, res.Answered); err != nil {
		logErrf("failed to write output: %v\n", err)
	}
}

func categoryIDs(cats []model.Category) string {
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return strings.Join(ids, ", ")
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

// flagChanged also looks at inherited persistent flags.
func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
