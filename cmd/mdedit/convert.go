package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/rgonek/markdown-editor/transform"
	"github.com/spf13/cobra"
)

var errRoundtripChanged = errors.New("markup changed after round trip")

func newParseCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Convert markup to a JSON document tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			e, err := root.session("")
			if err != nil {
				return err
			}
			defer e.Dispose()

			result, err := e.Engine().ParseWithContext(cmd.Context(), text, transform.CallOptions{})
			if err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}
			logWarnings(root.logger, "parse", result.Warnings)

			data, err := schema.ToJSON(result.Doc)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, data, "", "  "); err != nil {
				return fmt.Errorf("failed to format document JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
}

func newSerializeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serialize [file]",
		Short: "Convert a JSON document tree to markup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc, err := schema.FromJSON([]byte(data))
			if err != nil {
				return err
			}
			e, err := root.session("")
			if err != nil {
				return err
			}
			defer e.Dispose()

			if err := e.Engine().Schema().Check(doc); err != nil {
				return fmt.Errorf("invalid document: %w", err)
			}
			result, err := e.Engine().SerializeWithContext(cmd.Context(), doc, transform.CallOptions{})
			if err != nil {
				return fmt.Errorf("serialize failed: %w", err)
			}
			logWarnings(root.logger, "serialize", result.Warnings)
			fmt.Fprintln(cmd.OutOrStdout(), result.Markup)
			return nil
		},
	}
}

func newRoundtripCmd(root *rootOptions) *cobra.Command {
	var check, html bool
	cmd := &cobra.Command{
		Use:   "roundtrip [file]",
		Short: "Parse markup and serialize it back",
		Long:  `roundtrip shows the markup the wysiwyg surface would produce for a document. With --check it fails when the result differs from the input.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			e, err := root.session("")
			if err != nil {
				return err
			}
			defer e.Dispose()

			engine := e.Engine()
			parsed, err := engine.ParseWithContext(cmd.Context(), text, transform.CallOptions{})
			if err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}
			logWarnings(root.logger, "parse", parsed.Warnings)

			if html {
				out, err := engine.RenderHTML(parsed.Doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			serialized, err := engine.SerializeWithContext(cmd.Context(), parsed.Doc, transform.CallOptions{})
			if err != nil {
				return fmt.Errorf("serialize failed: %w", err)
			}
			logWarnings(root.logger, "serialize", serialized.Warnings)
			fmt.Fprintln(cmd.OutOrStdout(), serialized.Markup)

			if check && trimFinalNewline(serialized.Markup) != trimFinalNewline(text) {
				return errRoundtripChanged
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Fail when the round trip changes the markup")
	cmd.Flags().BoolVar(&html, "html", false, "Print the HTML projection instead of markup")
	return cmd
}

func logWarnings(logger *slog.Logger, operation string, warnings []markup.Warning) {
	for _, warning := range warnings {
		logger.Warn("conversion warning",
			"operation", operation,
			"type", warning.Type,
			"node", warning.NodeType,
			"message", warning.Message,
		)
	}
}
