package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func submitCmd() *cobra.Command {
	var (
		userID         string
		inputRef       string
		sizeBytes      int64
		durationS      float64
		mode           string
		threshold      float64
		languages      []string
		paddingBeforeS float64
		paddingAfterS  float64
		ensemblePolicy string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new censoring job",
		Example: "  censorlyctl submit --user-id u1 --input-ref uploads/clip.mp4 --mode beep",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"user_id":          userID,
				"input_object_ref": inputRef,
				"input_size_bytes": sizeBytes,
				"input_duration_s": durationS,
				"mode":             mode,
				"threshold":        threshold,
				"languages":        languages,
				"padding_before_s": paddingBeforeS,
				"padding_after_s":  paddingAfterS,
				"ensemble_policy":  ensemblePolicy,
			}
			out, err := doRequest(cmd.Context(), "POST", serverURL(cmd)+"/jobs", body)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owning user id (required)")
	cmd.Flags().StringVar(&inputRef, "input-ref", "", "object store key of the uploaded input (required)")
	cmd.Flags().Int64Var(&sizeBytes, "size-bytes", 0, "input size in bytes")
	cmd.Flags().Float64Var(&durationS, "duration-s", 0, "input duration in seconds")
	cmd.Flags().StringVar(&mode, "mode", "beep", "censoring mode: beep, mute, cut")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "detector confidence threshold (0 = server default)")
	cmd.Flags().StringSliceVar(&languages, "languages", nil, "languages to scan for, comma-separated")
	cmd.Flags().Float64Var(&paddingBeforeS, "padding-before-s", 0, "interval padding before each censored span (0 = server default)")
	cmd.Flags().Float64Var(&paddingAfterS, "padding-after-s", 0, "interval padding after each censored span (0 = server default)")
	cmd.Flags().StringVar(&ensemblePolicy, "ensemble-policy", "", "detector ensemble policy: regex_only, ml_only, fast_first, both (empty = server default)")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("input-ref")

	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := doRequest(cmd.Context(), "GET", serverURL(cmd)+"/jobs/"+args[0], nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var (
		userID string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/jobs?user_id=%s&limit=%d", serverURL(cmd), userID, limit)
			if status != "" {
				url += "&status=" + status
			}
			out, err := doRequest(cmd.Context(), "GET", url, nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owning user id (required)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: pending, running, completed, failed, cancelled")
	cmd.Flags().IntVar(&limit, "limit", 50, "max jobs to return")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := doRequest(cmd.Context(), "POST", serverURL(cmd)+"/jobs/"+args[0]+"/cancel", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}
