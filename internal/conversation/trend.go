package conversation

import "github.com/zhouzirui/moodchat/backend/internal/model/sentiment"

// TrendOptions tunes the moving-average comparison done by RecentTrend.
type TrendOptions struct {
	// Window is how many of the latest emotions are considered.
	Window int
	// Split is how many of those form the "recent" side; the rest are "earlier".
	Split int
	// Threshold is the minimum average difference that counts as a change.
	Threshold float64
}

// DefaultTrendOptions returns window 5, split 3, threshold 0.3.
func DefaultTrendOptions() TrendOptions {
	return TrendOptions{Window: 5, Split: 3, Threshold: 0.3}
}

// RecentTrend compares the average score of the most recent emotions against the
// ones just before them. Fewer than two entries, or a non-positive window or split,
// yield Stable.
func (s *Store) RecentTrend(opts TrendOptions) sentiment.Trend {
	return computeTrend(s.emotions, opts)
}

func computeTrend(history []sentiment.Result, opts TrendOptions) sentiment.Trend {
	if opts.Window <= 0 || opts.Split <= 0 {
		return sentiment.Stable
	}

	taken := opts.Window
	if taken > len(history) {
		taken = len(history)
	}
	if taken < 2 {
		return sentiment.Stable
	}

	// newest first
	scores := make([]int, taken)
	for i := 0; i < taken; i++ {
		scores[i] = history[len(history)-1-i].Label.Score()
	}

	split := opts.Split
	if split > taken {
		split = taken
	}

	recentAvg := average(scores[:split])
	earlierAvg := recentAvg
	if split < taken {
		earlierAvg = average(scores[split:])
	}

	threshold := opts.Threshold
	if threshold < 0 {
		threshold = 0
	}

	diff := recentAvg - earlierAvg
	switch {
	case diff > threshold:
		return sentiment.Improving
	case diff < -threshold:
		return sentiment.Declining
	default:
		return sentiment.Stable
	}
}

func average(scores []int) float64 {
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return float64(sum) / float64(len(scores))
}
