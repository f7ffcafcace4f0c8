package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-path/internal/navigation"
	"github.com/p-n-ai/pai-path/internal/search"
)

type orderedTopic struct {
	Index   int    `json:"index" yaml:"index"`
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Chapter string `json:"chapter" yaml:"chapter"`
}

func newOrderCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print every topic in path order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.load(cmd)
			if err != nil {
				return err
			}
			seq := lib.Snapshot().Sequence
			topics := make([]orderedTopic, 0, seq.Len())
			for i := 0; i < seq.Len(); i++ {
				t := seq.At(i)
				topics = append(topics, orderedTopic{Index: i, ID: t.ID, Title: t.Title, Chapter: seq.ChapterTitle(i)})
			}
			return opts.render(cmd.OutOrStdout(), topics, func(w io.Writer) {
				for _, t := range topics {
					fmt.Fprintf(w, "%3d  %-32s %s (%s)\n", t.Index, t.ID, t.Title, t.Chapter)
				}
			})
		},
	}
}

type located struct {
	ID       string `json:"id" yaml:"id"`
	Index    int    `json:"index" yaml:"index"`
	Previous string `json:"previous,omitempty" yaml:"previous,omitempty"`
	Next     string `json:"next,omitempty" yaml:"next,omitempty"`
	IsFirst  bool   `json:"isFirst" yaml:"isFirst"`
	IsLast   bool   `json:"isLast" yaml:"isLast"`
}

func newLocateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <topic-id>",
		Short: "Print the previous/next position of a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if lib.Snapshot().Sequence.Empty() {
				return fmt.Errorf("catalog %s has no topics", opts.catalogDir)
			}
			pos, lookup := lib.Locate(args[0])
			if lookup != navigation.LookupFound {
				return fmt.Errorf("topic %q not found", args[0])
			}

			out := located{ID: args[0], Index: pos.Index, IsFirst: pos.IsFirst, IsLast: pos.IsLast}
			if pos.Previous != nil {
				out.Previous = pos.Previous.ID
			}
			if pos.Next != nil {
				out.Next = pos.Next.ID
			}
			return opts.render(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "index:    %d\n", out.Index)
				fmt.Fprintf(w, "previous: %s\n", orNone(out.Previous))
				fmt.Fprintf(w, "next:     %s\n", orNone(out.Next))
				fmt.Fprintf(w, "first:    %t\n", out.IsFirst)
				fmt.Fprintf(w, "last:     %t\n", out.IsLast)
			})
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search chapter and topic titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.load(cmd)
			if err != nil {
				return err
			}
			results := lib.Search(strings.Join(args, " "))
			return opts.render(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, e := range results {
					if e.Kind == search.KindChapter {
						fmt.Fprintf(w, "chapter  %-32s %s\n", e.ID, e.Title)
						continue
					}
					fmt.Fprintf(w, "topic    %-32s %s (%s)\n", e.ID, e.Title, e.ParentChapter)
				}
			})
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
