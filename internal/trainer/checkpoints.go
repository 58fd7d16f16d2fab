package trainer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/NeuroCSUT/RatGPS/internal/model"
)

// DiscoverCheckpoints returns the fold checkpoints <savePath>-<n>.json.zlib that exist,
// keyed by one-based fold number.
func DiscoverCheckpoints(savePath string) (map[int]string, error) {
	dir, base := filepath.Split(savePath)
	if dir == "" {
		dir = "."
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `-([0-9]+)\.json\.zlib$`)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover checkpoints: %w", err)
	}
	found := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found[n] = filepath.Join(dir, e.Name())
	}
	return found, nil
}

// RequireCheckpoints fails unless a checkpoint exists for every fold 1..k.
func RequireCheckpoints(savePath string, k int) error {
	found, err := DiscoverCheckpoints(savePath)
	if err != nil {
		return err
	}
	var missing []int
	for i := 1; i <= k; i++ {
		if _, ok := found[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing checkpoints for folds %v (expected %s)", missing, model.CheckpointPath(savePath, missing[0]))
	}
	return nil
}
