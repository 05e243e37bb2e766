package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/cassava-api/internal/capture"
	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

type batchOptions struct {
	Dir     string
	Workers int
	NoSave  bool
}

var batchOpts batchOptions

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify every image in a directory",
	Run: func(cmd *cobra.Command, args []string) {
		runBatch(cmd.Context(), batchOpts)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOpts.Dir, "dir", "d", "", "Directory of leaf photos (searched recursively)")
	batchCmd.Flags().IntVarP(&batchOpts.Workers, "workers", "w", optimalWorkers(), "Number of parallel decode workers")
	batchCmd.Flags().BoolVar(&batchOpts.NoSave, "no-save", false, "Do not record results in the scan history")

	batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

// optimalWorkers leaves a quarter of the CPUs to the inference runtime.
func optimalWorkers() int {
	n := (runtime.NumCPU() * 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

type decoded struct {
	Index int
	Path  string
	Image *model.ImageBuffer
	Err   error
}

type batchResult struct {
	Path    string
	Verdict decision.Verdict
	Err     error
}

func runBatch(ctx context.Context, opts batchOptions) {
	paths, err := collectImages(opts.Dir)
	if err != nil {
		die("Failed to list images", err)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No supported images found in %s\n", opts.Dir)
		return
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	loader, queue := openQueue(ctx)
	defer loader.Close()

	fmt.Fprintf(os.Stderr, "🌿 Classifying %d images with %d decode workers...\n", len(paths), opts.Workers)

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("🔍 Scanning leaves"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	images := decodeAll(ctx, paths, opts.Workers)

	// inference stays serialized on the queue worker
	results := make([]batchResult, len(paths))
	for d := range images {
		res := batchResult{Path: d.Path, Err: d.Err}
		if d.Err == nil {
			res.Verdict, res.Err = queue.Submit(ctx, d.Image)
			if res.Err == nil && res.Verdict.IsClassified() && !opts.NoSave {
				saveVerdict(ctx, res.Verdict, d.Image)
			}
		}
		results[d.Index] = res
		bar.Add(1)
	}
	bar.Finish()

	if err := ctx.Err(); err != nil {
		die("Batch interrupted", err)
	}
	printBatch(results)
}

// decodeAll decodes paths on workers goroutines. The channel closes once
// every path has been reported or ctx is done.
func decodeAll(ctx context.Context, paths []string, workers int) <-chan decoded {
	type task struct {
		index int
		path  string
	}
	tasks := make(chan task)
	out := make(chan decoded, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				img, _, err := capture.DecodeFile(t.path)
				select {
				case out <- decoded{Index: t.index, Path: t.path, Image: img, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, p := range paths {
			select {
			case tasks <- task{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// collectImages walks dir and returns every supported image path, sorted.
func collectImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && capture.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func printBatch(results []batchResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tRESULT\tCONFIDENCE")
	fmt.Fprintln(w, "----\t------\t----------")

	failed, uncertain := 0, 0
	for _, r := range results {
		switch {
		case r.Path == "":
			continue
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "%s\terror: %v\t-\n", r.Path, r.Err)
		case !r.Verdict.IsClassified():
			uncertain++
			fmt.Fprintf(w, "%s\tuncertain\t-\n", r.Path)
		default:
			fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", r.Path, catalog.Abbreviation(r.Verdict.Label), r.Verdict.Confidence*100)
		}
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\n🏁 Done. %d classified, %d uncertain, %d failed.\n",
		len(results)-failed-uncertain, uncertain, failed)
}
