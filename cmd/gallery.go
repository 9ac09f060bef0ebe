package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Build the face gallery once and report what it contains",
	Long: `Extract an embedding from every reference image in the dataset directory
and report how many usable entries each identity has. References that cannot
be read or contain no face are listed as skipped.`,
	SilenceUsage: true,
	RunE:         runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)

	galleryCmd.Flags().Bool("json", false, "Output as JSON")
}

// galleryIdentity is one row of the gallery report.
type galleryIdentity struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

type gallerySkipped struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type galleryOutput struct {
	Dir        string            `json:"dir"`
	References int               `json:"references"`
	Entries    int               `json:"entries"`
	Dim        int               `json:"dim"`
	Identities []galleryIdentity `json:"identities"`
	Skipped    []gallerySkipped  `json:"skipped"`
}

func runGallery(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()

	store, err := gallery.NewStore(cfg.Gallery.DatasetDir)
	if err != nil {
		return err
	}
	refs, err := store.References()
	if err != nil {
		return err
	}

	builder := gallery.NewBuilder(store, newExtractor(cfg), cfg.Session.AcceptThreshold)

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(refs),
			progressbar.OptionSetDescription("Building gallery"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
		builder.OnReference = func(gallery.Reference, error) {
			bar.Add(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, report, err := builder.Build(ctx)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("building gallery: %w", err)
	}

	perIdentity := make(map[string]int, len(report.Identities))
	for _, id := range report.Identities {
		perIdentity[id] = 0
	}
	for _, e := range g.Entries() {
		perIdentity[e.Identity]++
	}

	out := galleryOutput{
		Dir:        store.Dir(),
		References: report.References,
		Entries:    g.Len(),
		Dim:        g.Dim(),
		Identities: make([]galleryIdentity, 0, len(perIdentity)),
		Skipped:    make([]gallerySkipped, 0, len(report.Skipped)),
	}
	for name, n := range perIdentity {
		out.Identities = append(out.Identities, galleryIdentity{Name: name, Entries: n})
	}
	sort.Slice(out.Identities, func(i, j int) bool { return out.Identities[i].Name < out.Identities[j].Name })
	for _, s := range report.Skipped {
		out.Skipped = append(out.Skipped, gallerySkipped{Path: s.Reference.Path, Error: s.Err.Error()})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Gallery %s: %d entries from %d references (dim %d)\n", out.Dir, out.Entries, out.References, out.Dim)
	for _, id := range out.Identities {
		marker := ""
		if id.Entries == 0 {
			marker = "  (never matchable)"
		}
		fmt.Printf("  %-30s %d%s\n", id.Name, id.Entries, marker)
	}
	if len(out.Skipped) > 0 {
		fmt.Printf("Skipped %d references:\n", len(out.Skipped))
		for _, s := range out.Skipped {
			fmt.Printf("  %s: %s\n", s.Path, s.Error)
		}
	}
	return nil
}
