package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/e5sim/internal/embedding"
)

var (
	scoreQuery    string
	scorePassages []string
	scoreRanked   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score passages against a query",
	Long: `Score every passage against the query and print the similarity of each.
Without flags the query and passages come from the score section of the config.`,
	Example: `  e5sim score --query "query: what is the capital of France?" \
    --passage "passage: Paris is the capital of France." \
    --passage "passage: The rocket launched at dawn."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		query := scoreQuery
		if query == "" {
			query = cfg.Score.Query
		}
		passages := scorePassages
		if len(passages) == 0 {
			passages = cfg.Score.Passages
		}

		pipeline, cleanup, err := openPipeline(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		scores := pipeline.ScorePassages(query, passages)
		if scoreRanked {
			scores = embedding.RankPassages(scores)
		}
		printScores(cmd, scores)

		for _, s := range scores {
			if s.Err != nil {
				log.Warn().Int("failed_index", s.Index).Msg("Some passages could not be scored")
				break
			}
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreQuery, "query", "q", "", "query text")
	scoreCmd.Flags().StringArrayVarP(&scorePassages, "passage", "p", nil, "passage text (repeatable)")
	scoreCmd.Flags().BoolVar(&scoreRanked, "ranked", false, "order output by descending score")
}

func printScores(cmd *cobra.Command, scores []embedding.PassageScore) {
	out := cmd.OutOrStdout()
	for _, s := range scores {
		if s.Err != nil {
			fmt.Fprintf(out, "%3d  %8s  %s  (error: %v)\n", s.Index, "-", s.Passage, s.Err)
			continue
		}
		fmt.Fprintf(out, "%3d  %8.4f  %s\n", s.Index, s.Score, s.Passage)
	}
}
