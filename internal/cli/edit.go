package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/timemap"
)

var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "List the project's clips in sequence order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := openSession(projectPath)
		if err != nil {
			return err
		}
		printClips(os.Stdout, sess.Clips(), sess.Speakers().DisplayName)
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder [clip_id...]",
	Short: "Change the order of the active clips",
	Long: `Put the active clips into a new order. Either list every active clip id in
the wanted order, or move a single clip with --to.

Examples:
  recut reorder c3 c1 c2
  recut reorder c3 --to 0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReorder,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [clip_id...]",
	Short: "Remove clips from the edited program",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAndSave(func(sess *editor.Session) error {
			for _, id := range args {
				if err := sess.Delete(id); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [clip_id...]",
	Short: "Bring deleted clips back",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAndSave(func(sess *editor.Session) error {
			for _, id := range args {
				if err := sess.Restore(id); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var splitCmd = &cobra.Command{
	Use:   "split [clip_id] [word_index]",
	Short: "Cut a speech clip before the given word",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid word index %q: %w", args[1], err)
		}
		return editAndSave(func(sess *editor.Session) error {
			left, right, err := sess.Split(args[0], k)
			if err != nil {
				return err
			}
			fmt.Printf("Split into %s and %s\n", left.ID, right.ID)
			return nil
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge [primary_id] [secondary_id]",
	Short: "Join two adjacent speech clips",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAndSave(func(sess *editor.Session) error {
			merged, err := sess.Merge(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Merged into %s\n", merged.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(clipsCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(mergeCmd)

	reorderCmd.Flags().Int("to", -1, "Move the single given clip to this active position")
}

func runReorder(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetInt("to")
	return editAndSave(func(sess *editor.Session) error {
		ids := args
		if to >= 0 {
			if len(args) != 1 {
				return fmt.Errorf("--to moves exactly one clip, got %d", len(args))
			}
			var err error
			ids, err = moveClip(activeIDs(sess.Map()), args[0], to)
			if err != nil {
				return err
			}
		}
		return sess.Reorder(ids)
	})
}

// editAndSave applies fn to the project session and saves the result.
func editAndSave(fn func(*editor.Session) error) error {
	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	before := sess.Revision()
	if err := fn(sess); err != nil {
		return err
	}
	if sess.Revision() == before {
		return nil
	}
	return saveSession(projectPath, f, sess)
}

func activeIDs(m *timemap.Map) []string {
	spans := m.Spans()
	ids := make([]string, len(spans))
	for i, s := range spans {
		ids[i] = s.Clip.ID
	}
	return ids
}

// moveClip returns ids with id moved to position to.
func moveClip(ids []string, id string, to int) ([]string, error) {
	from := -1
	for i, other := range ids {
		if other == id {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, fmt.Errorf("clip %q is not active", id)
	}
	if to >= len(ids) {
		return nil, fmt.Errorf("position %d out of range (0-%d)", to, len(ids)-1)
	}
	out := make([]string, 0, len(ids))
	for i, other := range ids {
		if i != from {
			out = append(out, other)
		}
	}
	out = append(out[:to], append([]string{id}, out[to:]...)...)
	return out, nil
}
