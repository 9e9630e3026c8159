// Command navctl inspects a route declaration the way the dashboard sees
// it: the generated menu, breadcrumb trails, lookups and consistency checks.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"admin_dashboard/internal/handlers/layout"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/views"
	"admin_dashboard/web"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	routesFile string
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "navctl",
		Short:         "Inspect the dashboard navigation tree",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.routesFile, "routes", os.Getenv("ROUTES_FILE"), "route declaration file (default: embedded)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON")

	root.AddCommand(
		newMenuCmd(opts),
		newBreadcrumbCmd(opts),
		newFindCmd(opts),
		newFlattenCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

// loaded is a navigator plus the component keys it was built with.
type loaded struct {
	nav  *navigation.Navigator
	keys []string
}

func load(opts *options) (*loaded, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	decl, err := navigation.LoadDeclaration(opts.routesFile)
	if err != nil {
		return nil, err
	}
	renderer, err := views.NewRenderer(web.Templates(""), logger)
	if err != nil {
		return nil, err
	}
	components := layout.Components(renderer)
	nav, err := navigation.New(decl, navigation.DefaultIcons(), components, logger, navigation.Options{})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return &loaded{nav: nav, keys: keys}, nil
}

func withNavigator(opts *options, fn func(l *loaded) error) error {
	l, err := load(opts)
	if err != nil {
		return err
	}
	defer l.nav.Close()
	return fn(l)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMenuCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the sidebar menu generated from the route tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNavigator(opts, func(l *loaded) error {
				menu := l.nav.Menu()
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), menu)
				}
				printMenu(cmd.OutOrStdout(), menu, 0)
				return nil
			})
		},
	}
}

func printMenu(w io.Writer, items []navigation.MenuItem, depth int) {
	for _, it := range items {
		icon := ""
		if it.IconName != "" {
			icon = " [" + it.IconName + "]"
		}
		fmt.Fprintf(w, "%s%s  %s%s\n", strings.Repeat("  ", depth), it.Key, it.Label, icon)
		printMenu(w, it.Children, depth+1)
	}
}

func newBreadcrumbCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "breadcrumb KEY",
		Short: "Print the breadcrumb trail shown for a page key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNavigator(opts, func(l *loaded) error {
				trail := l.nav.Breadcrumb(&navigation.State{CurrentPageKey: args[0]})
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), trail)
				}
				if len(trail) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
					return nil
				}
				titles := make([]string, len(trail))
				for i, e := range trail {
					titles[i] = e.Title
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(titles, " / "))
				return nil
			})
		},
	}
}

func newFindCmd(opts *options) *cobra.Command {
	var key, path string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Look up a route by key (any depth) or by path (top level only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (key == "") == (path == "") {
				return errors.New("exactly one of --key or --path is required")
			}
			return withNavigator(opts, func(l *loaded) error {
				var (
					node navigation.RouteNode
					ok   bool
				)
				if key != "" {
					node, ok = l.nav.Table().FindByKey(key)
				} else {
					node, ok = l.nav.Table().FindByPath(path)
				}
				if !ok {
					return fmt.Errorf("no route for %s", strings.TrimSpace(key+" "+path))
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), node)
				}
				printNode(cmd.OutOrStdout(), node)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "route key")
	cmd.Flags().StringVar(&path, "path", "", "route path")
	return cmd
}

func printNode(w io.Writer, n navigation.RouteNode) {
	access := "public"
	if n.Protected {
		access = "protected"
	}
	fmt.Fprintf(w, "%-6s %-24s %-14s %s\n", n.Key, n.Path, n.Name, access)
}

func newFlattenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten",
		Short: "List every route, parents before their children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNavigator(opts, func(l *loaded) error {
				nodes := l.nav.Table().Flatten()
				if opts.asJSON {
					for i := range nodes {
						nodes[i].Children = nil
					}
					return printJSON(cmd.OutOrStdout(), nodes)
				}
				for _, n := range nodes {
					printNode(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Cross-check routes against icons, page components and breadcrumb maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNavigator(opts, func(l *loaded) error {
				issues := navigation.Validate(l.nav.Table(), l.nav.Icons(), l.keys, l.nav.Pages())
				if opts.asJSON {
					if err := printJSON(cmd.OutOrStdout(), issues); err != nil {
						return err
					}
				} else if len(issues) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "ok")
				}
				if len(issues) > 0 {
					return &navigation.ValidationError{Issues: issues}
				}
				return nil
			})
		},
	}
}
