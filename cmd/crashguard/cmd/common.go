package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	faultColor  = color.New(color.FgRed, color.Bold)
	pathColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.Faint)
)

// out is where commands write their results; errOut takes status lines.
var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case core.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case core.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}

func validateFormat(format string) error {
	if !core.IsValidOutputFormat(format) {
		return core.ErrCallerError(core.CodeInvalidConfig, fmt.Sprintf("unknown format %q (text, json, yaml)", format))
	}
	return nil
}
