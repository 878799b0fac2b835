package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (cli *commandLine) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the API server cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats [NAMESPACE]",
		Short: "Show cached keys per namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := cli.client().CacheStats(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAMESPACE\tSIZE\tKEYS")
			for _, s := range stats {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Namespace, s.Size, strings.Join(s.Keys, " "))
			}
			return tw.Flush()
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [NAMESPACE]",
		Short: "Clear one namespace, or the whole cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns := firstArg(args)
			if err := cli.client().ClearCache(cmd.Context(), ns); err != nil {
				return err
			}
			if ns == "" {
				ns = "all namespaces"
			}
			cli.printf("Cleared %s.\n", ns)
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
