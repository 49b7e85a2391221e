package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/recut/internal/document"
	"github.com/mgpai22/recut/internal/editor"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Print the project as an editable document",
	Long: `Render the edited sequence as a document. By default the plain transcript is
printed; --json writes the structured document that "recut apply" reads back.

Examples:
  recut doc
  recut doc --json -o edit.json`,
	Args: cobra.NoArgs,
	RunE: runDoc,
}

var applyCmd = &cobra.Command{
	Use:   "apply [document.json]",
	Short: "Apply an edited document to the project",
	Long: `Read a document produced by "recut doc --json", edited by hand or by another
tool, and fold the changes back into the project. Reordered, deleted and retyped
speech is mapped onto the original recording; unknown content is dropped.

Examples:
  recut doc --json -o edit.json
  $EDITOR edit.json
  recut apply edit.json`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(applyCmd)

	docCmd.Flags().Bool("json", false, "Write the structured document instead of plain text")
	applyCmd.Flags().Bool("dry-run", false, "Report whether the document changes anything without saving")
}

func runDoc(cmd *cobra.Command, args []string) error {
	_, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	outputPath, _ := cmd.Flags().GetString("output")

	doc := sess.Document()
	var data []byte
	if asJSON {
		data, err = document.Encode(doc)
		if err != nil {
			return err
		}
		data = append(data, '\n')
	} else {
		data = []byte(doc.PlainText() + "\n")
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	logger.Infow("Document written", "output", outputPath, "revision", sess.Revision())
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := document.Decode(data)
	if err != nil {
		return err
	}

	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := submit(ctx, sess, doc)
	if err != nil {
		return err
	}
	if !res.HasChanged {
		fmt.Println("No changes")
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	logger.Infow("Document applied",
		"clips", len(res.Clips),
		"active", len(sess.Map().Spans()),
		"dry_run", dryRun,
	)
	if dryRun {
		fmt.Printf("Document changes the project (%d clips)\n", len(res.Clips))
		return nil
	}
	return saveSession(projectPath, f, sess)
}

// submit runs the session's conversion loop just long enough to apply doc.
func submit(ctx context.Context, sess *editor.Session, doc *document.Document) (document.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sess.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	res, err := sess.Submit(gctx, doc)
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return res, err
}
