package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rgonek/markdown-editor/editor"
	"github.com/rgonek/markdown-editor/toolbar"
	"github.com/spf13/cobra"
)

func newToolbarCmd(root *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "toolbar",
		Short: "Print the resolved toolbars of a mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			surface := toolbar.Surface(mode)
			if surface != toolbar.SurfaceWysiwyg && surface != toolbar.SurfaceMarkup {
				return fmt.Errorf("invalid mode %q (allowed: %s, %s)", mode, editor.ModeWysiwyg, editor.ModeMarkup)
			}
			e, err := root.session("")
			if err != nil {
				return err
			}
			defer e.Dispose()

			set := e.Toolbars()
			out := cmd.OutOrStdout()
			primary := set.Main(surface)
			fmt.Fprintf(out, "%s:\n", primary.Slot)
			for idx, group := range primary.Groups {
				fmt.Fprintf(out, "  %d: %s\n", idx+1, describeItems(group))
			}
			fmt.Fprintf(out, "hidden: %s\n", describeItems(set.Hidden(surface)))
			writeDiagnostics(out, set.Diagnostics)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(editor.ModeWysiwyg), "Editor mode: wysiwyg|markup")
	return cmd
}

func describeItems(items []toolbar.Item) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, describeItem(item))
	}
	return strings.Join(parts, " ")
}

func describeItem(item toolbar.Item) string {
	switch typed := item.(type) {
	case toolbar.SingleButton:
		if typed.ID == typed.ActionID {
			return typed.ID
		}
		return typed.ID + "=" + typed.ActionID
	case toolbar.ListButton:
		return typed.ID + "[" + describeItems(typed.Items) + "]"
	case toolbar.Stub:
		return typed.ID + "!"
	}
	return "?"
}

func writeDiagnostics(out io.Writer, diagnostics []toolbar.Diagnostic) {
	for _, diag := range diagnostics {
		fmt.Fprintf(out, "warning: %s: %s\n", diag.Kind, diag.Message)
	}
}
