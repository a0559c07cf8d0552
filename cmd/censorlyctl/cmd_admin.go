package main

import "github.com/spf13/cobra"

func wordlistReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wordlist-reload",
		Short: "Reload the wordlist and atomically swap the detector's pattern set",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := doRequest(cmd.Context(), "POST", serverURL(cmd)+"/admin/wordlist/reload", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func detectorStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detector-stats",
		Short: "Show running detector ensemble statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := doRequest(cmd.Context(), "GET", serverURL(cmd)+"/admin/detector/stats", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}
