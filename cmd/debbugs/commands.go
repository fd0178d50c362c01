package main

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smnsjas/go-debbugs"
	"github.com/smnsjas/go-debbugs/bug"
)

func newStatusCmd(flags *clientFlags) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "status ID...",
		Short: "Show the status of bugs, most urgent first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := flags.newClient(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			reports, err := client.GetStatus(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			slices.SortStableFunc(reports, bug.CompareUrgency)

			p := newPrinter(cmd.OutOrStdout())
			for _, r := range reports {
				if long {
					fmt.Fprintln(p.w, r.String())
					continue
				}
				p.report(r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Print every field of each bug")
	return cmd
}

func newBugsCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bugs KEY=VALUE...",
		Short: "Search for bugs",
		Long: `Search for bugs matching every KEY=VALUE pair, for example

  debbugs bugs package=python-debianbts status=open

A key given more than once matches any of its values.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(args)
			if err != nil {
				return err
			}
			client, err := flags.newClient(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ids, err := client.GetBugs(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).ints(ids)
			return nil
		},
	}
}

func newNewestCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "newest N",
		Short: "List the N most recently filed bugs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			client, err := flags.newClient(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ids, err := client.NewestBugs(cmd.Context(), n)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).ints(ids)
			return nil
		},
	}
}

func newUsertagCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "usertag EMAIL [TAG...]",
		Short: "List the bugs a user has tagged",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.newClient(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			usertags, err := client.GetUsertag(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}

			tags := make([]string, 0, len(usertags))
			for tag := range usertags {
				tags = append(tags, tag)
			}
			sort.Strings(tags)

			out := cmd.OutOrStdout()
			for _, tag := range tags {
				fmt.Fprintf(out, "%s: %s\n", tag, joinInts(usertags[tag]))
			}
			return nil
		},
	}
}

func newLogCmd(flags *clientFlags) *cobra.Command {
	var (
		raw      bool
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "log ID...",
		Short: "Print the messages of bugs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := flags.newClient(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			logs := make([][]*bug.Log, len(ids))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(parallel, 1))
			for i, id := range ids {
				i, id := i, id
				g.Go(func() error {
					l, err := client.GetBugLog(ctx, id)
					if err != nil {
						return err
					}
					logs[i] = l
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			for i, id := range ids {
				p.log(id, logs[i], raw)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print headers and bodies as stored")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 4, "Bug logs fetched at once")
	return cmd
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid bug number %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseCriteria turns KEY=VALUE arguments into search criteria. Repeated
// keys collect their values into a list.
func parseCriteria(args []string) (debbugs.Criteria, error) {
	values := map[string][]string{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid criterion %q, want KEY=VALUE", arg)
		}
		values[key] = append(values[key], value)
	}

	criteria := debbugs.Criteria{}
	for key, vs := range values {
		if len(vs) == 1 {
			criteria[key] = vs[0]
			continue
		}
		criteria[key] = vs
	}
	return criteria, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
