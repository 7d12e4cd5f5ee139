package ml

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"argus/core"
)

// isolationTree is a single random-partition tree in the ensemble.
type isolationTree struct {
	root *isolationNode
}

// isolationNode is a node in an isolation tree.
type isolationNode struct {
	left    *isolationNode
	right   *isolationNode
	feature string
	value   float64
	size    int
	isLeaf  bool
}

// IsolationForestConfig holds configuration for the isolation ensemble.
type IsolationForestConfig struct {
	NumTrees      int     // trees in the ensemble (default: 200)
	SubsampleSize int     // per-tree subsample size (default: 256)
	MaxDepth      int     // maximum tree depth (default: 8)
	Threshold     float64 // anomaly score cutoff (default: 0.6)
	Seed          int64   // RNG seed; fixed so identical input scores identically
	Logger        *zap.SugaredLogger
}

// IsolationForestScorer scores groups with a bagged random-partition
// isolation ensemble fitted on the current batch. Each Score call is
// self-contained: the forest is built, used, and discarded within the
// call, so concurrent runs never share state.
type IsolationForestScorer struct {
	config *IsolationForestConfig
	logger *zap.SugaredLogger
}

// NewIsolationForestScorer creates the model-backed scorer.
func NewIsolationForestScorer(config *IsolationForestConfig) *IsolationForestScorer {
	if config == nil {
		config = &IsolationForestConfig{}
	}
	if config.NumTrees == 0 {
		config.NumTrees = 200
	}
	if config.SubsampleSize == 0 {
		config.SubsampleSize = 256
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 8
	}
	if config.Threshold == 0 {
		config.Threshold = 0.6
	}
	if config.Seed == 0 {
		config.Seed = 1
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	return &IsolationForestScorer{config: config, logger: config.Logger}
}

// Name returns the algorithm name.
func (f *IsolationForestScorer) Name() string {
	return "isolation_forest"
}

// Score fits the ensemble on the batch and scores every group.
func (f *IsolationForestScorer) Score(ctx context.Context, groups []*core.DedupedGroup) ([]core.AnomalyResult, error) {
	if len(groups) <= 1 {
		return degenerateResults(groups, f.Name()), nil
	}

	vectors := extractAll(groups)
	rng := rand.New(rand.NewSource(f.config.Seed))

	sampleSize := f.config.SubsampleSize
	if len(vectors) < sampleSize {
		sampleSize = len(vectors)
	}

	trees := f.buildForest(vectors, sampleSize, rng)

	results := make([]core.AnomalyResult, 0, len(vectors))
	for _, fv := range vectors {
		total := 0.0
		for _, tree := range trees {
			total += f.pathLength(tree.root, fv, 0, rng)
		}
		avgPath := total / float64(len(trees))
		score := f.calibrate(f.anomalyScore(avgPath, sampleSize))

		results = append(results, core.AnomalyResult{
			Key:       fv.Key,
			Score:     score,
			IsAnomaly: score >= f.config.Threshold,
			Algorithm: f.Name(),
		})
	}

	f.logger.Debugw("scored batch", "groups", len(groups), "trees", len(trees))
	return results, nil
}

func (f *IsolationForestScorer) buildForest(vectors []*FeatureVector, sampleSize int, rng *rand.Rand) []*isolationTree {
	trees := make([]*isolationTree, 0, f.config.NumTrees)
	for i := 0; i < f.config.NumTrees; i++ {
		sample := f.subsample(vectors, sampleSize, rng)
		trees = append(trees, &isolationTree{root: f.buildNode(sample, 0, rng)})
	}
	return trees
}

func (f *IsolationForestScorer) subsample(vectors []*FeatureVector, size int, rng *rand.Rand) []*FeatureVector {
	if len(vectors) <= size {
		return vectors
	}
	sample := make([]*FeatureVector, size)
	for i := range sample {
		sample[i] = vectors[rng.Intn(len(vectors))]
	}
	return sample
}

func (f *IsolationForestScorer) buildNode(vectors []*FeatureVector, depth int, rng *rand.Rand) *isolationNode {
	if len(vectors) <= 1 || depth >= f.config.MaxDepth {
		return &isolationNode{size: len(vectors), isLeaf: true}
	}

	feature := featureNames[rng.Intn(len(featureNames))]
	minVal, maxVal := findMinMax(vectors, feature)
	if minVal == maxVal {
		return &isolationNode{size: len(vectors), isLeaf: true}
	}

	split := minVal + rng.Float64()*(maxVal-minVal)

	var left, right []*FeatureVector
	for _, fv := range vectors {
		if fv.Features[feature] <= split {
			left = append(left, fv)
		} else {
			right = append(right, fv)
		}
	}

	return &isolationNode{
		feature: feature,
		value:   split,
		size:    len(vectors),
		left:    f.buildNode(left, depth+1, rng),
		right:   f.buildNode(right, depth+1, rng),
	}
}

func findMinMax(vectors []*FeatureVector, feature string) (float64, float64) {
	minVal := math.MaxFloat64
	maxVal := -math.MaxFloat64
	for _, fv := range vectors {
		v := fv.Features[feature]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func (f *IsolationForestScorer) pathLength(node *isolationNode, fv *FeatureVector, depth float64, rng *rand.Rand) float64 {
	if node == nil || node.isLeaf {
		if node != nil && node.size > 1 {
			return depth + averagePathLength(node.size)
		}
		return depth
	}
	if fv.Features[node.feature] <= node.value {
		return f.pathLength(node.left, fv, depth+1, rng)
	}
	return f.pathLength(node.right, fv, depth+1, rng)
}

// averagePathLength is the expected path length of an unsuccessful BST
// search over n points: 2H(n-1) - 2(n-1)/n.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	harmonic := 0.0
	for i := 1; i <= n-1; i++ {
		harmonic += 1.0 / float64(i)
	}
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

// anomalyScore converts an average path length to the standard isolation
// forest score 2^(-E[h]/c(n)), clamped to [0,1].
func (f *IsolationForestScorer) anomalyScore(pathLength float64, sampleSize int) float64 {
	if sampleSize <= 1 {
		return 0.5
	}
	c := averagePathLength(sampleSize)
	if c == 0 {
		return 0.5
	}
	return clamp01(math.Pow(2, -pathLength/c))
}

// calibrationGain stretches raw scores away from the 0.5 pivot so
// well-separated outliers clear the default threshold with margin while
// inliers, whose raw scores sit at or below the pivot, stay under it.
const calibrationGain = 1.5

func (f *IsolationForestScorer) calibrate(raw float64) float64 {
	return clamp01(0.5 + (raw-0.5)*calibrationGain)
}
