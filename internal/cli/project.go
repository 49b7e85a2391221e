package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgpai22/recut/internal/document"
	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/project"
	"github.com/mgpai22/recut/internal/timeline"
)

// openSession loads the project file and starts an editing session over it.
func openSession(path string) (*project.File, *editor.Session, error) {
	f, err := project.Load(path, logger.Named("project"))
	if err != nil {
		return nil, nil, err
	}
	sess := editor.New(f.Clips, f.Registry(),
		editor.WithLogger(logger.Named("editor")),
		editor.WithDocumentOptions(document.Options{
			SpacerThreshold: cfg.Document.SpacerThreshold,
		}),
	)
	return f, sess, nil
}

func saveSession(path string, f *project.File, sess *editor.Session) error {
	out := project.New(f.AudioPath, f.Duration, sess.Clips(), sess.Speakers().Snapshot())
	out.Language = f.Language
	if err := project.Save(path, out); err != nil {
		return err
	}
	logger.Debugw("project saved", "path", path, "revision", sess.Revision())
	return nil
}

// printClips writes one line per clip in sequence order.
func printClips(w io.Writer, clips []*timeline.Clip, names func(string) string) {
	seq := append([]*timeline.Clip(nil), clips...)
	timeline.SortByOrder(seq)
	for _, c := range seq {
		label := "-"
		if !c.IsGap() {
			label = names(c.Speaker)
		}
		fmt.Fprintf(w, "%3d  %-36s  %-6s  %-7s  %8.3f-%-8.3f  %-12s  %s\n",
			c.Order,
			c.ID,
			c.Type,
			c.Status,
			timeline.Seconds(c.OriginalStart),
			timeline.Seconds(c.OriginalEnd),
			label,
			preview(c.Text(), 60),
		)
	}
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
