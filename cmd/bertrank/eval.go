package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/trec"
	"github.com/spf13/cobra"
)

var (
	evalQrels    string
	evalCutoff   int
	evalPerQuery bool
)

// evalCmd scores a run file against relevance judgments
var evalCmd = &cobra.Command{
	Use:   "eval <run-file>",
	Short: "Evaluate a run file against qrels",
	Long: `Evaluate reports precision and nDCG at a cutoff for a TREC run file,
using the relevance judgments in a qrels file. Queries without judgments
are left out of the means.

Examples:
  # Evaluate with the qrels from the config file
  bertrank eval run.txt

  # P@10 and nDCG@10 per topic
  bertrank eval --qrels qrels-rnd5.txt --k 10 --per-query run.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalQrels, "qrels", "", "qrels file (default from config data.qrels)")
	evalCmd.Flags().IntVar(&evalCutoff, "k", 10, "evaluation cutoff")
	evalCmd.Flags().BoolVar(&evalPerQuery, "per-query", false, "print a row per query")
}

func runEval(cmd *cobra.Command, args []string) error {
	qrelsPath := evalQrels
	if qrelsPath == "" {
		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return err
		}
		qrelsPath = cfg.Data.Qrels
	}
	if qrelsPath == "" {
		return fmt.Errorf("no qrels file: pass --qrels or set data.qrels")
	}

	run, err := readRun(args[0])
	if err != nil {
		return err
	}
	qrels, err := readQrels(qrelsPath)
	if err != nil {
		return err
	}

	report, err := trec.Evaluate(run, qrels, evalCutoff)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report, evalPerQuery)
	return nil
}

func readRun(path string) ([]trec.RankedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run file: %w", err)
	}
	defer f.Close()
	run, err := trec.ParseRun(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return run, nil
}

func readQrels(path string) (trec.Qrels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening qrels: %w", err)
	}
	defer f.Close()
	q, err := trec.ReadQrels(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return q, nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printReport(w io.Writer, r trec.Report, perQuery bool) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("query", "retrieved", "judged", fmt.Sprintf("P@%d", r.K), fmt.Sprintf("nDCG@%d", r.K))

	if perQuery {
		for _, q := range r.Queries {
			t.Row(q.QueryID,
				fmt.Sprint(q.Retrieved),
				fmt.Sprint(q.Judged),
				fmt.Sprintf("%.4f", q.Precision),
				fmt.Sprintf("%.4f", q.NDCG),
			)
		}
	}
	t.Row(fmt.Sprintf("all (%d)", len(r.Queries)), "", "",
		fmt.Sprintf("%.4f", r.MeanPrecision),
		fmt.Sprintf("%.4f", r.MeanNDCG),
	)
	fmt.Fprintln(w, t.String())
}
