package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats for listing commands.
const (
	OutputTree  = "tree"
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// outputFormat is a pflag.Value restricted to a fixed set of formats.
type outputFormat struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*outputFormat)(nil)

func newOutputFormat(def string, allowed ...string) *outputFormat {
	return &outputFormat{value: def, allowed: allowed}
}

func (f *outputFormat) String() string { return f.value }

func (f *outputFormat) Type() string { return "format" }

func (f *outputFormat) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range f.allowed {
		if s == a {
			f.value = s
			return nil
		}
	}
	return fmt.Errorf("invalid output format %q, must be one of: %s", s, strings.Join(f.allowed, ", "))
}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// Output flags
	Output  *outputFormat
	NoColor bool
	Quiet   bool

	// Workspace flags
	Root string
	Scan bool
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags, OutputTree, OutputTree, OutputTable, OutputJSON, OutputYAML)
		case "records":
			addOutputFlags(cmd, flags, OutputTable, OutputTable, OutputJSON, OutputYAML)
		case "workspace":
			addWorkspaceFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8383, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags, def string, allowed ...string) {
	flags.Output = newOutputFormat(def, allowed...)
	cmd.Flags().VarP(flags.Output, "output", "o", "Output format ("+strings.Join(allowed, "|")+")")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress progress output")
}

func addWorkspaceFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVar(&flags.Root, "root", "", "Workspace root (overrides workspace.root)")
	cmd.Flags().BoolVar(&flags.Scan, "scan", false, "Scan the workspace even when lazy loading is configured")
}

// Format returns the selected output format.
func (f *StandardFlags) Format() string {
	if f.Output == nil {
		return OutputTable
	}
	return f.Output.value
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", f.Port)
	}
	return nil
}

// parseLocation splits "path:line" into its parts. A missing or malformed
// line yields line 1.
func parseLocation(arg string) (string, int) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return arg, 1
	}
	line, err := strconv.Atoi(arg[i+1:])
	if err != nil || line < 1 {
		return arg, 1
	}
	return arg[:i], line
}
