package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cyberpolicy/cracklab/internal/decrypt"
	"github.com/cyberpolicy/cracklab/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

const defaultAPI = "http://localhost:8080"

var (
	apiURL      string
	adminSecret string
	cfgFile     string
	timeout     time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "labctl",
	Short: "cracklab command-line client",
	Long: `labctl talks to a crackd server.

Students use it to submit answers; operators use it to provision challenges,
look up submissions and tally decrypt reports.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.labctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("labctl")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api")
		}
		if apiURL == "" {
			apiURL = defaultAPI
		}
		if adminSecret == "" {
			adminSecret = viper.GetString("admin_secret")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.labctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "crackd base URL (default "+defaultAPI+")")
	rootCmd.PersistentFlags().StringVar(&adminSecret, "admin-secret", "", "admin secret for operator commands (or LABCTL_ADMIN_SECRET)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "overall request timeout")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(submissionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient(admin bool) (*client.Client, error) {
	if !admin {
		return client.New(apiURL)
	}
	if adminSecret == "" {
		return nil, errors.New("operator command: set --admin-secret or LABCTL_ADMIN_SECRET")
	}
	return client.New(apiURL, client.WithAdminSecret(adminSecret))
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// ── submit ───────────────────────────────────────────────────────────────────

var submitChallenge string

var submitCmd = &cobra.Command{
	Use:   "submit --challenge <id> <candidate>",
	Short: "Submit a candidate answer for a challenge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext()
		defer cancel()

		res, err := c.Submit(ctx, submitChallenge, args[0])
		if err != nil {
			return err
		}
		return printSubmitResult(cmd.OutOrStdout(), res)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitChallenge, "challenge", "", "challenge id (required)")
	_ = submitCmd.MarkFlagRequired("challenge")
}

func printSubmitResult(w io.Writer, res *client.SubmitResult) error {
	if !res.Correct {
		fmt.Fprintln(w, "Not correct.")
		return nil
	}
	fmt.Fprintln(w, "Correct!")
	fmt.Fprintf(w, "Accepted at:   %s\n", res.AcceptedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "First success: %t\n", res.FirstSuccess)
	fmt.Fprintf(w, "Receipt:       %s\n", res.ReceiptID)
	return nil
}

// ── challenge ────────────────────────────────────────────────────────────────

var (
	chID         string
	chStudent    string
	chAssignment string
	chAnswer     string
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage challenges (operator)",
}

var challengeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a challenge for a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext()
		defer cancel()

		ch, err := c.CreateChallenge(ctx, client.CreateChallengeRequest{
			ChallengeID:  chID,
			StudentID:    chStudent,
			AssignmentID: chAssignment,
			Answer:       chAnswer,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created challenge %s for %s/%s\n", ch.ChallengeID, ch.StudentID, ch.AssignmentID)
		return nil
	},
}

func init() {
	challengeCreateCmd.Flags().StringVar(&chID, "id", "", "challenge id (generated when empty)")
	challengeCreateCmd.Flags().StringVar(&chStudent, "student", "", "student id (required)")
	challengeCreateCmd.Flags().StringVar(&chAssignment, "assignment", "", "assignment id (required)")
	challengeCreateCmd.Flags().StringVar(&chAnswer, "answer", "", "expected answer (required)")
	for _, f := range []string{"student", "assignment", "answer"} {
		_ = challengeCreateCmd.MarkFlagRequired(f)
	}
	challengeCmd.AddCommand(challengeCreateCmd)
}

// ── submission ───────────────────────────────────────────────────────────────

var (
	subStudent    string
	subAssignment string
)

var submissionCmd = &cobra.Command{
	Use:   "submission",
	Short: "Inspect recorded successes (operator)",
}

var submissionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the recorded success for a student and assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext()
		defer cancel()

		sub, err := c.GetSubmission(ctx, subStudent, subAssignment)
		if client.IsNotFound(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has not solved %s yet\n", subStudent, subAssignment)
			return nil
		}
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Student:     %s\n", sub.StudentID)
		fmt.Fprintf(w, "Assignment:  %s\n", sub.AssignmentID)
		fmt.Fprintf(w, "Accepted at: %s\n", sub.AcceptedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Receipt:     %s\n", sub.ReceiptID)
		return nil
	},
}

func init() {
	submissionShowCmd.Flags().StringVar(&subStudent, "student", "", "student id (required)")
	submissionShowCmd.Flags().StringVar(&subAssignment, "assignment", "", "assignment id (required)")
	_ = submissionShowCmd.MarkFlagRequired("student")
	_ = submissionShowCmd.MarkFlagRequired("assignment")
	submissionCmd.AddCommand(submissionShowCmd)
}

// ── report ───────────────────────────────────────────────────────────────────

var (
	reportRoster string
	reportScan   bool
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Tally decrypt reports per student (operator)",
	Long: `report fetches every decrypt report and counts them per student email.

With --roster, guids are mapped to emails using the provisioning roster
(email,guid,keylen,alphabet_size rows). Reports with unknown guids are
counted under "?". --scan also prints every raw report first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var roster decrypt.Roster
		if reportRoster != "" {
			f, err := os.Open(reportRoster)
			if err != nil {
				return err
			}
			roster, err = decrypt.ParseRoster(f)
			f.Close()
			if err != nil {
				return err
			}
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext()
		defer cancel()

		reports, err := c.ListDecryptReports(ctx)
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), reportFormat, reportScan, reports, roster)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRoster, "roster", "", "roster CSV mapping guids to emails")
	reportCmd.Flags().BoolVar(&reportScan, "scan", false, "print every raw report before the tally")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format: text or json")
}

func printReport(w io.Writer, format string, scan bool, reports []client.DecryptReport, roster decrypt.Roster) error {
	rs := make([]*decrypt.Report, len(reports))
	for i, r := range reports {
		rs[i] = &decrypt.Report{GUID: r.GUID, ReceivedAt: r.ReceivedAt, SourceIP: r.SourceIP, Email: r.Email}
	}
	counts := decrypt.Tally(rs, roster)

	switch format {
	case "json":
		out := struct {
			Reports []client.DecryptReport `json:"reports,omitempty"`
			Counts  []decrypt.Count        `json:"counts"`
		}{Counts: counts}
		if scan {
			out.Reports = reports
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if scan {
		fmt.Fprintln(tw, "GUID\tRECEIVED\tSOURCE")
		for _, r := range reports {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.GUID, r.ReceivedAt.UTC().Format(time.RFC3339), r.SourceIP)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw, "EMAIL\tREPORTS")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Email, c.Reports)
	}
	return tw.Flush()
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the labctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labctl %s\n", version)
	},
}
