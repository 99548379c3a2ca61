package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"live-caption-service/internal/service/annotate"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate [text...]",
	Short: "Show the emoji the annotator picks for text",
	Long: `Runs the content annotator locally. With no arguments every line of
standard input is annotated.`,
	RunE: runAnnotate,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	a := annotate.NewDefault()
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		printAnnotation(out, a, strings.Join(args, " "))
		return nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return errors.New("no text given")
	}
	for _, line := range lines {
		printAnnotation(out, a, line)
	}
	return nil
}

func printAnnotation(w io.Writer, a *annotate.Annotator, text string) {
	res := a.Annotate(text)
	fmt.Fprintf(w, "%s\t[%s]\n", annotate.Apply(text, res), res.Source)
}
