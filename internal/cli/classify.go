package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/cassava-api/internal/capture"
	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/Brownie44l1/cassava-api/internal/preprocess"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

type classifyOptions struct {
	Camera   int
	DumpCrop string
	NoSave   bool
}

var classifyOpts classifyOptions

var classifyCmd = &cobra.Command{
	Use:   "classify [image]",
	Short: "Classify a single leaf photo or a camera frame",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		runClassify(cmd.Context(), path, classifyOpts)
	},
}

func init() {
	classifyCmd.Flags().IntVarP(&classifyOpts.Camera, "camera", "c", -1, "Grab a frame from this camera device instead of reading a file")
	classifyCmd.Flags().StringVar(&classifyOpts.DumpCrop, "dump-crop", "", "Write the 380x380 crop fed to the model to this PNG file")
	classifyCmd.Flags().BoolVar(&classifyOpts.NoSave, "no-save", false, "Do not record the result in the scan history")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(ctx context.Context, path string, opts classifyOptions) {
	img, err := acquire(path, opts.Camera)
	if err != nil {
		die("Failed to read image", err)
	}

	if opts.DumpCrop != "" {
		if err := dumpCrop(img, opts.DumpCrop); err != nil {
			die("Failed to write crop", err)
		}
		fmt.Fprintf(os.Stderr, "🖼  Crop written to %s\n", opts.DumpCrop)
	}

	loader, queue := openQueue(ctx)
	defer loader.Close()

	verdict, err := queue.Submit(ctx, img)
	if err != nil {
		die("Classification failed", err)
	}

	fmt.Println(verdict.String())
	if verdict.IsClassified() {
		fmt.Printf("\nRemedy:\n%s\n", catalog.Remedy(verdict.Label))
		if !opts.NoSave {
			saveVerdict(ctx, verdict, img)
		}
	}
}

func acquire(path string, camera int) (*model.ImageBuffer, error) {
	switch {
	case path != "" && camera >= 0:
		return nil, fmt.Errorf("give either an image path or --camera, not both")
	case path != "":
		img, _, err := capture.DecodeFile(path)
		return img, err
	case camera >= 0:
		cam, err := capture.OpenCamera(camera)
		if err != nil {
			return nil, err
		}
		defer cam.Close()
		return cam.Grab()
	default:
		return nil, fmt.Errorf("no image path or --camera given")
	}
}

func dumpCrop(img *model.ImageBuffer, path string) error {
	rescaled, err := preprocess.Rescale(img)
	if err != nil {
		return err
	}
	crop, err := preprocess.CenterCrop(rescaled, model.InputSize)
	if err != nil {
		return err
	}
	data, err := capture.EncodePNG(crop)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func saveVerdict(ctx context.Context, v decision.Verdict, img *model.ImageBuffer) {
	rec, err := store.NewRecord(v, img)
	if err == nil {
		err = Scans.Save(ctx, rec)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to save scan: %v\n", err)
	}
}
