package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gamecafe/panelsync/internal/events"
)

// eventInfo describes how one server event is handled.
type eventInfo struct {
	Event       string   `json:"event"`
	Kind        string   `json:"kind"`
	Invalidates []string `json:"invalidates,omitempty"`
}

func listEvents(kind string) []eventInfo {
	var out []eventInfo

	if kind == "" || kind == "invalidate" {
		for _, name := range events.Names() {
			prefixes, _ := events.Prefixes(name)
			info := eventInfo{Event: name, Kind: "invalidate"}
			for _, p := range prefixes {
				info.Invalidates = append(info.Invalidates, p.String())
			}
			out = append(out, info)
		}
	}

	if kind == "" || kind == "patch" {
		for _, name := range events.Patched {
			out = append(out, eventInfo{Event: name, Kind: "patch"})
		}
	}

	if kind == "" || kind == "lifecycle" {
		for _, name := range events.Lifecycle {
			out = append(out, eventInfo{Event: name, Kind: "lifecycle"})
		}
	}

	slices.SortStableFunc(out, func(a, b eventInfo) int { return strings.Compare(a.Event, b.Event) })

	return out
}

func newEventsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the server events panelsync handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "", "invalidate", "patch", "lifecycle":
			default:
				return fmt.Errorf("--kind must be invalidate, patch or lifecycle, got %q", kind)
			}

			list := listEvents(kind)
			if flagFmt == "json" {
				return formatJSON(cmd.OutOrStdout(), list)
			}

			rows := make([][]string, 0, len(list))
			for _, e := range list {
				rows = append(rows, []string{e.Event, e.Kind, strings.Join(e.Invalidates, " ")})
			}
			formatTable(cmd.OutOrStdout(), []string{"EVENT", "KIND", "INVALIDATES"}, rows)

			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Filter: invalidate|patch|lifecycle")

	return cmd
}
