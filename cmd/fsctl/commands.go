package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/parisxmas/fsdash/internal/auth"
	"github.com/parisxmas/fsdash/internal/export"
	"github.com/parisxmas/fsdash/internal/views"
	"github.com/parisxmas/fsdash/internal/web"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/spf13/cobra"
)

func listCmd(g *globals) *cobra.Command {
	var p fsclient.ListParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			resp, err := c.ListSubmissions(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(resp.Data) == 0 {
				fmt.Fprintln(out, "No submissions found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, strings.Join(export.Header, "\t"))
			for _, s := range resp.Data {
				fmt.Fprintln(tw, strings.Join(export.Row(s), "\t"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			m := resp.Meta
			fmt.Fprintf(out, "Page %d of %d (%d total)\n", m.CurrentPage, m.TotalPages, m.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 10, "rows per page")
	cmd.Flags().StringVar(&p.Search, "search", "", "free-text filter")
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one submission as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := c.GetSubmission(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load submission: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Print the current status of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			st, err := c.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load status: %w", err)
			}
			var cur fsclient.Status
			if st.Status != nil {
				cur = *st.Status
			}
			fmt.Fprintln(cmd.OutOrStdout(), cur.Label())
			return nil
		},
	}
}

func setStatusCmd(g *globals) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change the status of a submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := views.StatusDialog{Selected: args[1], ErrorNote: note}.Payload()
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := c.UpdateStatus(cmd.Context(), args[0], req)
			if err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.ID, s.CurrentStatus().Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "error", "", "error note stored with the status")
	return cmd
}

func retryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue a failed submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			st, err := c.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load status: %w", err)
			}
			if st.Status == nil || *st.Status != fsclient.StatusFailed {
				return errors.New("only failed submissions can be retried")
			}
			s, err := c.Retry(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to retry submission: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.ID, s.CurrentStatus().Label())
			return nil
		},
	}
}

func exportCmd(g *globals) *cobra.Command {
	var (
		p       fsclient.ListParams
		format  string
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one page of submissions as CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			resp, err := c.ListSubmissions(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			if outPath == "" || outPath == "-" {
				return export.Write(cmd.OutOrStdout(), f, resp.Data)
			}
			file, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := export.Write(file, f, resp.Data); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d submissions to %s\n", len(resp.Data), outPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 100, "rows per page")
	cmd.Flags().StringVar(&p.Search, "search", "", "free-text filter")
	cmd.Flags().StringVar(&format, "format", "xlsx", "csv or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func healthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show submission service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("service unreachable: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:\t%s\n", h.Checks.Status)
			fmt.Fprintf(out, "Uptime:\t%s\n", web.Uptime(h.Checks.Uptime))
			fmt.Fprintf(out, "Memory:\t%s / %s\n", web.MB(h.Checks.Memory.Used), web.MB(h.Checks.Memory.Total))
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.password_hash",
		Long:  "Print a bcrypt hash for auth.password_hash. Without an argument the password is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			if pw == "" {
				return errors.New("empty password")
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
