package watch

import (
	"context"

	"github.com/klytics/sheetkit/internal/refine"
)

// RefineHandler returns a handler that refines each file with instruction
// and writes the outcome into outDir (see refine.Refiner.RefineFile).
// observe, when set, sees every file result including failed ones.
func RefineHandler(ref *refine.Refiner, instruction, outDir string, observe func(*refine.FileResult)) EventHandler {
	return func(ctx context.Context, path string) (Processed, error) {
		fr, err := ref.RefineFile(ctx, path, instruction, outDir)
		if fr != nil && fr.Err == nil {
			fr.Err = err
		}
		if observe != nil && fr != nil {
			observe(fr)
		}
		if err != nil {
			return Processed{}, err
		}
		return Processed{Status: fr.Status(), Output: fr.Output}, nil
	}
}
