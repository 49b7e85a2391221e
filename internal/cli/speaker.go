package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
)

var speakerCmd = &cobra.Command{
	Use:   "speaker",
	Short: "Name and merge speakers",
}

var speakerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List speakers with their display names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := openSession(projectPath)
		if err != nil {
			return err
		}
		snap := sess.Speakers().Snapshot()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLIPS\tSPOKEN")
		for _, st := range speakerStats(sess.Clips(), sess.Speakers()) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.1fs\n",
				st.ID, snap.DisplayName(st.ID), st.Clips, timeline.Seconds(st.Spoken))
		}
		return w.Flush()
	},
}

var speakerRenameCmd = &cobra.Command{
	Use:   "rename [speaker_id] [name]",
	Short: "Set a speaker's display name (empty to reset)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return speakerEdit(func(sess *editor.Session) error {
			return sess.RenameSpeaker(args[0], args[1])
		})
	},
}

var speakerMergeCmd = &cobra.Command{
	Use:   "merge [from_id] [into_id]",
	Short: "Treat one speaker as another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return speakerEdit(func(sess *editor.Session) error {
			return sess.MergeSpeakers(args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(speakerCmd)
	speakerCmd.AddCommand(speakerListCmd)
	speakerCmd.AddCommand(speakerRenameCmd)
	speakerCmd.AddCommand(speakerMergeCmd)
}

func speakerEdit(fn func(*editor.Session) error) error {
	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	return saveSession(projectPath, f, sess)
}

type speakerStat struct {
	ID     string
	Clips  int
	Spoken time.Duration
}

// speakerStats totals active speech per canonical speaker, in registry order.
func speakerStats(clips []*timeline.Clip, reg *speaker.Registry) []speakerStat {
	byID := make(map[string]*speakerStat)
	var out []*speakerStat
	for _, id := range reg.Active() {
		st := &speakerStat{ID: id}
		byID[id] = st
		out = append(out, st)
	}
	for _, c := range clips {
		if c.IsGap() || !c.IsActive() {
			continue
		}
		st, ok := byID[reg.Resolve(c.Speaker)]
		if !ok {
			continue
		}
		st.Clips++
		st.Spoken += c.Duration()
	}
	res := make([]speakerStat, len(out))
	for i, st := range out {
		res[i] = *st
	}
	return res
}
