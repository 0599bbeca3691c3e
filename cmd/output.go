/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/jjudge-oj/roster/internal/form"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errInvalidInput = errors.New("invalid input")

var outputFormat string

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
}

// render writes v in the selected output format. table draws the tabular
// form.
func render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch strings.ToLower(outputFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func printFormErrors(w io.Writer, errs form.Errors) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	for _, field := range fields {
		if field == form.FormErrorKey {
			fmt.Fprintf(w, "error: %s\n", errs[field])
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", field, errs[field])
	}
}

// flagField maps a command flag onto a form field.
type flagField struct {
	flag  string
	field string
}

// changedFields returns the raw values of the flags set on the command line,
// keyed by form field.
func changedFields(cmd *cobra.Command, mapping []flagField) map[string]any {
	fields := make(map[string]any)
	for _, m := range mapping {
		if cmd.Flags().Changed(m.flag) {
			fields[m.field] = cmd.Flags().Lookup(m.flag).Value.String()
		}
	}
	return fields
}

// submitForm applies fields to f and submits it. Validation errors are
// printed to the command's error stream.
func submitForm[T any](cmd *cobra.Command, f *form.Form[T], fields map[string]any, onSubmit form.SubmitFunc[T]) error {
	for name, value := range fields {
		f.OnFieldChange(name, value)
	}
	submitted, err := f.Submit(cmd.Context(), onSubmit)
	if err != nil {
		return err
	}
	if !submitted {
		printFormErrors(cmd.ErrOrStderr(), f.Errors())
		return errInvalidInput
	}
	return nil
}

var (
	readersMu sync.Mutex
	readers   = map[io.Reader]*bufio.Reader{}
)

// readLine reads one line from in. Readers are shared per stream so
// consecutive prompts do not lose buffered input.
func readLine(in io.Reader) string {
	readersMu.Lock()
	r, ok := readers[in]
	if !ok {
		r = bufio.NewReader(in)
		readers[in] = r
	}
	readersMu.Unlock()

	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	switch strings.ToLower(strings.TrimSpace(readLine(in))) {
	case "y", "yes":
		return true
	}
	return false
}

func prompt(in io.Reader, out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	return readLine(in)
}
