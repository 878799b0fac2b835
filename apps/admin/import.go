package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/registrar/core/importer"
)

var (
	errNotConfirmed = errors.New("import not confirmed (use --yes when not running in a terminal)")
	errUploadFailed = errors.New("some documents failed to upload")
)

func (cli *commandLine) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import students or documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	var yes bool
	students := &cobra.Command{
		Use:   "students FILE",
		Short: "Import students from a .csv or .xlsx file, after a preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.importStudents(cmd, args[0], yes)
		},
	}
	students.Flags().BoolVarP(&yes, "yes", "y", false, "Import without asking for confirmation")

	documents := &cobra.Command{
		Use:   "documents ZIP",
		Short: "Upload documents from a ZIP archive laid out as <DocumentType>/<RegistrationID>.<ext>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.importDocuments(cmd, args[0])
		},
	}

	cmd.AddCommand(students, documents)
	return cmd
}

func (cli *commandLine) importStudents(cmd *cobra.Command, path string, yes bool) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading import file")
	}
	name := filepath.Base(path)

	preview, err := cli.client().PreviewStudents(ctx, name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	cli.printPreview(preview)

	if preview.Summary.Valid == 0 {
		cli.printf("Nothing to import.\n")
		return nil
	}
	if !yes {
		ok, err := cli.confirm(fmt.Sprintf("Import %d student(s)?", preview.Summary.Valid))
		if err != nil {
			return err
		}
		if !ok {
			return errNotConfirmed
		}
	}

	report, err := cli.client().CommitStudents(ctx, name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	cli.printf("Created %d student(s).\n", len(report.Created))
	for _, f := range report.Failed {
		cli.printf("  line %d (%s): %s\n", f.Line, f.RegistrationID, f.Message)
	}
	return nil
}

func (cli *commandLine) printPreview(p importer.Preview) {
	s := p.Summary
	cli.printf("Rows: %d, valid: %d, duplicates: %d, invalid: %d\n", s.Total, s.Valid, s.Duplicates, s.Invalid)
	if len(p.Duplicates) > 0 {
		cli.printf("Duplicates:\n")
		for _, d := range p.Duplicates {
			where := "an existing student"
			if d.Kind == importer.DuplicateBatch {
				where = fmt.Sprintf("line %d", d.FirstLine)
			}
			cli.printf("  line %d: %s %s already used by %s\n", d.Row.Line, d.Field, d.Row.RegistrationID, where)
		}
	}
	if len(p.Errors) > 0 {
		cli.printf("Errors:\n")
		for _, e := range p.Errors {
			cli.printf("  line %d: %s: %s\n", e.Line, e.Field, e.Message)
		}
	}
}

func (cli *commandLine) importDocuments(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading archive")
	}

	organized, err := importer.OrganizeBytes(data, cli.conf.Import.MaxZipEntrySize)
	if err != nil {
		return err
	}
	for _, u := range organized.Unrecognized {
		cli.printf("skipped %s: %s\n", u.Path, u.Reason)
	}

	existing, err := cli.client().Identities(ctx)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	plan := importer.Plan(organized, existing)
	for _, regID := range plan.UnknownStudents {
		cli.printf("skipped %s: no such student\n", regID)
	}

	report := importer.UploadBatches(ctx, plan.Batches, cli.client(), cli.conf.Import.UploadConcurrency)

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STUDENT\tTYPE\tFILE\tRESULT")
	for _, f := range report.Files {
		result := "uploaded"
		if !f.Uploaded {
			result = "failed: " + f.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.RegistrationID, f.Type, f.File, result)
	}
	_ = tw.Flush()
	cli.printf("Uploaded %d document(s) in %d batch(es), %d failed.\n", report.Uploaded, report.Batches, report.Failed)

	if report.Failed > 0 {
		return errUploadFailed
	}
	return nil
}
