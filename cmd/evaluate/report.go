package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

const numStages = detection.MaxStage - detection.MinStage + 1

// ruleDetector is the part of *detection.Detector the tool needs.
type ruleDetector interface {
	DetectRules(text string) detection.DetectionResult
}

type report struct {
	Total        int
	Distribution [numStages]int
	Labels       map[string]int

	Labelled  int
	Correct   int
	Confusion [numStages][numStages]int // [expected][predicted]
}

// Accuracy is the share of labelled samples predicted exactly.
func (r *report) Accuracy() float64 {
	if r.Labelled == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Labelled)
}

// evaluate classifies samples with at most workers concurrent detections.
func evaluate(ctx context.Context, d ruleDetector, samples []sample, workers int) (*report, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]detection.DetectionResult, len(samples))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range samples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = d.DetectRules(s.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &report{Total: len(samples), Labels: make(map[string]int)}
	for i, res := range results {
		predicted := clampStage(res.Stage)
		rep.Distribution[predicted]++
		for _, l := range res.Labels {
			rep.Labels[l]++
		}

		s := samples[i]
		if !s.Labelled {
			continue
		}
		rep.Labelled++
		rep.Confusion[s.Stage][predicted]++
		if s.Stage == predicted {
			rep.Correct++
		}
	}
	return rep, nil
}

func clampStage(stage int) int {
	return min(max(stage, detection.MinStage), detection.MaxStage)
}

// Print writes a plain-text summary.
func (r *report) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "messages: %d\n\n", r.Total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "stage\tname\tcount\tshare")
	for stage, n := range r.Distribution {
		name, _ := detection.StageInfo(stage)
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\n", stage, name, n, percent(n, r.Total))
	}
	_ = tw.Flush()

	if len(r.Labels) > 0 {
		_, _ = fmt.Fprintln(w, "\nlabels:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, l := range slices.Sorted(maps.Keys(r.Labels)) {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", l, r.Labels[l])
		}
		_ = tw.Flush()
	}

	if r.Labelled == 0 {
		return
	}

	_, _ = fmt.Fprintf(w, "\naccuracy: %.1f%% (%d/%d)\n\n", r.Accuracy()*100, r.Correct, r.Labelled)
	_, _ = fmt.Fprintln(w, "confusion matrix (rows: expected, columns: predicted)")
	tw = tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	header := "\t"
	for p := range numStages {
		header += strconv.Itoa(p) + "\t"
	}
	_, _ = fmt.Fprintln(tw, header)
	for e, row := range r.Confusion {
		line := strconv.Itoa(e) + "\t"
		for _, n := range row {
			line += strconv.Itoa(n) + "\t"
		}
		_, _ = fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
