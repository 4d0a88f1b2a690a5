package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newServerCmd groups the calls to a running server's loopback admin API.
func newServerCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Control a running server (loopback admin API)",
	}

	post := func(use, short, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return adminRequest(cmd.OutOrStdout(), http.MethodPost, g.url, path, nil)
			},
		}
	}

	state := &cobra.Command{
		Use:   "state",
		Short: "Print world metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminRequest(cmd.OutOrStdout(), http.MethodGet, g.url, "/admin/v1/state", nil)
		},
	}

	rate := &cobra.Command{
		Use:   "rate <hz>",
		Short: "Set the target tick rate (1..255)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminRequest(cmd.OutOrStdout(), http.MethodPost, g.url, "/admin/v1/rate", url.Values{"hz": {args[0]}})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <player-id>",
		Short: "Unregister a player and refund its peers' escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminRequest(cmd.OutOrStdout(), http.MethodPost, g.url, "/admin/v1/players/remove", url.Values{"id": {args[0]}})
		},
	}

	cmd.AddCommand(
		state,
		post("snapshot", "Write a snapshot now", "/admin/v1/snapshot"),
		post("pause", "Pause economies (commands still apply)", "/admin/v1/pause"),
		post("resume", "Resume economies", "/admin/v1/resume"),
		rate,
		remove,
	)
	return cmd
}

func adminRequest(out io.Writer, method, baseURL, path string, q url.Values) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
