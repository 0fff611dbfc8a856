package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-beans/app"
	kernel "github.com/km-arc/go-beans/framework/app"
	"github.com/km-arc/go-beans/framework/config"
)

type flags struct {
	envFiles    []string
	configFiles []string
	watch       time.Duration
	asJSON      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "go-beans",
		Short:        "Boot the demo application and inspect its beans",
		Version:      kernel.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&f.envFiles, "env", []string{".env"}, ".env files to load")
	root.PersistentFlags().StringSliceVarP(&f.configFiles, "config", "c", nil, "YAML configuration files")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every bean definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := boot(f)
			if err != nil {
				return err
			}
			defer a.Close()

			infos := a.Describe()
			if f.asJSON {
				return writeJSON(cmd, infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTYPE\tNAME\tSCOPE\tSTATE\tSOURCE")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					info.Key, info.Type, info.Name, info.Scope, dash(info.State), info.Source)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&f.asJSON, "json", false, "print JSON")

	get := &cobra.Command{
		Use:   "get <id|key>",
		Short: "Describe one bean",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(f)
			if err != nil {
				return err
			}
			defer a.Close()

			info, ok := a.DescribeBean(args[0])
			if !ok {
				return fmt.Errorf("no bean %q", args[0])
			}
			return writeJSON(cmd, info)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo and the bean inspector over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := boot(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	serve.Flags().DurationVar(&f.watch, "watch", 0, "reload YAML configuration on change, debounced by this duration")

	root.AddCommand(list, get, serve)
	return root
}

// boot builds the application with the demo provider and initializes it.
// A failed boot closes whatever was already built.
func boot(f *flags) (*kernel.Application, error) {
	a, err := kernel.New(kernel.Options{
		EnvFiles:    f.envFiles,
		ConfigFiles: f.configFiles,
		Watch:       f.watch,
	})
	if err != nil {
		return nil, err
	}
	a.Config.AddSource(config.NewMapSource("defaults", app.Defaults))

	if err := a.Use(&app.AppServiceProvider{}); err != nil {
		return nil, err
	}
	if err := a.Boot(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
