package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Add reference images for a person to the gallery",
	Long: `Add one or more reference images for a person to the gallery.

Each image must be .jpg, .jpeg or .png and must contain at least one face.
Accepted images are copied to <dataset>/<name>/<name>_<n><ext>; images without
a detectable face are rejected and nothing is stored for them.

Examples:
  rollcall enroll "Alice Novak" alice1.jpg alice2.png
  rollcall enroll Bob bob.jpg --skip-lookalike`,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
	RunE:         runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("skip-lookalike", false, "Do not check the gallery for similar faces of other people")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	skipLookalike := mustGetBool(cmd, "skip-lookalike")
	name, images := args[0], args[1:]

	name, err := gallery.ValidateIdentity(name)
	if err != nil {
		return err
	}

	cfg := config.Load()

	store, err := gallery.NewStore(cfg.Gallery.DatasetDir)
	if err != nil {
		return err
	}
	extractor := newExtractor(cfg)

	enroller := gallery.NewEnroller(store, extractor)
	if !skipLookalike {
		enroller.Lookalikes = gallery.NewBuilder(store, extractor, cfg.Session.AcceptThreshold)
		enroller.LookalikeDistance = cfg.Gallery.LookalikeDistance
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	type outcome struct {
		image  string
		result *gallery.EnrollResult
		err    error
	}
	outcomes := make([]outcome, 0, len(images))

	for _, image := range images {
		if ctx.Err() != nil {
			break
		}
		result, err := enroller.Enroll(ctx, image, name)
		outcomes = append(outcomes, outcome{image: image, result: result, err: err})
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	failed := 0
	for _, o := range outcomes {
		switch {
		case errors.Is(o.err, gallery.ErrNoFace):
			failed++
			fmt.Printf("  %s: rejected, no face detected\n", o.image)
		case o.err != nil:
			failed++
			fmt.Printf("  %s: failed: %v\n", o.image, o.err)
		default:
			fmt.Printf("  %s: stored as %s\n", o.image, o.result.Reference.Path)
			if o.result.Faces > 1 {
				fmt.Printf("    %d faces found, the first detected face is used\n", o.result.Faces)
			}
			for _, similar := range o.result.SimilarNames {
				fmt.Printf("    warning: name is similar to existing identity %q\n", similar)
			}
			for _, l := range o.result.Lookalikes {
				fmt.Printf("    warning: face resembles %q (distance %.3f, %s)\n", l.Identity, l.Distance, l.Source)
			}
		}
	}

	count, err := store.Count(name)
	if err == nil {
		fmt.Printf("%s now has %d reference images\n", name, count)
	}

	if ctx.Err() != nil {
		return errors.New("enrollment interrupted")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images were not enrolled", failed, len(images))
	}
	return nil
}
