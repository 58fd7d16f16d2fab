package analysis

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/NeuroCSUT/RatGPS/internal/archive"
	"github.com/NeuroCSUT/RatGPS/internal/metrics"
)

var knockoutRegexp = regexp.MustCompile(`^ko-([0-9]+)-([0-9]+)\.npz$`)

// Knockout is one prediction archive made with a channel zeroed.
type Knockout struct {
	Channel int
	Repeat  int
	Path    string
}

// KnockoutName is the archive name DiscoverKnockouts recognises.
func KnockoutName(channel, repeat int) string {
	return fmt.Sprintf("ko-%d-%d.npz", channel, repeat)
}

// PredictionsPath is where a prediction run writes its archive. Without a knockout
// (ko < 0) out is the archive itself; otherwise out is a directory and the archive
// is named for DiscoverKnockouts.
func PredictionsPath(out string, ko, repeat int) string {
	if ko < 0 {
		return out
	}
	return filepath.Join(out, KnockoutName(ko, repeat))
}

// DiscoverKnockouts finds ko-<channel>-<repeat>.npz archives beneath root, ordered by
// channel and then repeat.
func DiscoverKnockouts(root string) ([]Knockout, error) {
	var out []Knockout
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := knockoutRegexp.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		ch, err1 := strconv.Atoi(m[1])
		rep, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return nil
		}
		out = append(out, Knockout{Channel: ch, Repeat: rep, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover knockouts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Repeat < out[j].Repeat
	})
	return out, nil
}

// ChannelSensitivity summarises the decoding error with one channel knocked out.
type ChannelSensitivity struct {
	Channel       int
	Repeats       int
	MeanDist      float64
	MeanDistStd   float64
	MedianDist    float64
	MedianDistStd float64
	// Spikes is the channel's spike total, zero when no totals were given.
	Spikes float64
}

// RankKnockouts scores each archive's preds against its targets and aggregates the
// repeats of each channel as mean ± population standard deviation. Channels come back
// most harmful to lose first.
func RankKnockouts(kos []Knockout, spikeTotals []float64) ([]ChannelSensitivity, error) {
	means := map[int][]float64{}
	medians := map[int][]float64{}
	for _, ko := range kos {
		arrays, err := archive.Read(ko.Path)
		if err != nil {
			return nil, err
		}
		pt, err := archive.Lookup(arrays, "preds", "targets")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ko.Path, err)
		}
		preds, err := pt[0].Dense()
		if err != nil {
			return nil, err
		}
		targets, err := pt[1].Dense()
		if err != nil {
			return nil, err
		}
		means[ko.Channel] = append(means[ko.Channel], metrics.MeanDistance(preds, targets))
		medians[ko.Channel] = append(medians[ko.Channel], metrics.MedianDistance(preds, targets))
	}

	out := make([]ChannelSensitivity, 0, len(means))
	for ch, m := range means {
		s := ChannelSensitivity{Channel: ch, Repeats: len(m)}
		s.MeanDist, s.MeanDistStd = stat.PopMeanStdDev(m, nil)
		s.MedianDist, s.MedianDistStd = stat.PopMeanStdDev(medians[ch], nil)
		if ch < len(spikeTotals) {
			s.Spikes = spikeTotals[ch]
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanDist != out[j].MeanDist {
			return out[i].MeanDist > out[j].MeanDist
		}
		return out[i].Channel < out[j].Channel
	})
	return out, nil
}
