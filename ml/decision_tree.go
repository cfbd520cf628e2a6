package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const ModelTypeDecisionTree = "decision_tree"

type DecisionTree struct {
	maxDepth    int
	numFeatures int
	classes     []string
	nodes       []TreeNode
}

// TreeNode is one node of the flattened tree. Leaves carry the training class
// counts so probabilities survive a save/load round trip.
type TreeNode struct {
	FeatureIdx  int       `json:"feature_idx"`
	Threshold   float64   `json:"threshold"`
	LeftChild   int       `json:"left_child"`
	RightChild  int       `json:"right_child"`
	ClassCounts []float64 `json:"class_counts"`
	IsLeaf      bool      `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &DecisionTree{maxDepth: maxDepth}
}

func (dt *DecisionTree) Train(features [][]float64, labels []string) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	numFeatures, err := matrixWidth(features)
	if err != nil {
		return err
	}
	if dt.maxDepth <= 0 {
		dt.maxDepth = 3
	}

	classes, y := encodeLabels(labels)
	dt.classes = classes
	dt.numFeatures = numFeatures
	dt.nodes = dt.buildNode(features, y, 0)
	return nil
}

func (dt *DecisionTree) Predict(features [][]float64) ([]string, error) {
	labels := make([]string, len(features))
	for i, row := range features {
		leaf, err := dt.leaf(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		labels[i] = dt.classes[argmax(leaf.ClassCounts)]
	}
	return labels, nil
}

func (dt *DecisionTree) PredictProba(features [][]float64) ([][]float64, error) {
	probs := make([][]float64, len(features))
	for i, row := range features {
		leaf, err := dt.leaf(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		probs[i] = normalize(leaf.ClassCounts)
	}
	return probs, nil
}

func (dt *DecisionTree) Classes() []string {
	return append([]string(nil), dt.classes...)
}

func (dt *DecisionTree) NumFeatures() int {
	return dt.numFeatures
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	return writeArtifact(path, &artifact{
		ModelType:   ModelTypeDecisionTree,
		Classes:     dt.classes,
		NumFeatures: dt.numFeatures,
		MaxDepth:    dt.maxDepth,
		Nodes:       dt.nodes,
	})
}

func decisionTreeFromArtifact(a *artifact) (*DecisionTree, error) {
	if len(a.Nodes) == 0 {
		return nil, errors.New("decision tree artifact has no nodes")
	}
	if len(a.Classes) == 0 {
		return nil, errors.New("decision tree artifact has no classes")
	}
	for i, node := range a.Nodes {
		if node.IsLeaf {
			if len(node.ClassCounts) != len(a.Classes) {
				return nil, fmt.Errorf("node %d: class counts do not match classes", i)
			}
			continue
		}
		if node.LeftChild <= i || node.LeftChild >= len(a.Nodes) || node.RightChild <= i || node.RightChild >= len(a.Nodes) {
			return nil, fmt.Errorf("node %d: invalid child index", i)
		}
		if node.FeatureIdx < 0 || (a.NumFeatures > 0 && node.FeatureIdx >= a.NumFeatures) {
			return nil, fmt.Errorf("node %d: feature index out of range", i)
		}
	}
	return &DecisionTree{
		maxDepth:    a.MaxDepth,
		numFeatures: a.NumFeatures,
		classes:     a.Classes,
		nodes:       a.Nodes,
	}, nil
}

func (dt *DecisionTree) leaf(row []float64) (*TreeNode, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if dt.numFeatures > 0 && len(row) != dt.numFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.numFeatures, len(row))
	}
	idx := 0
	for {
		node := &dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(row) {
			return nil, errors.New("feature index out of range")
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	leaf := []TreeNode{{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		ClassCounts: classCounts(labels, len(dt.classes)),
		IsLeaf:      true,
	}}
	if depth >= dt.maxDepth || isPure(labels) {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, len(dt.classes))
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return leaf
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	root := TreeNode{
		FeatureIdx:  bestFeature,
		Threshold:   threshold,
		LeftChild:   1,
		RightChild:  1 + len(leftNodes),
		ClassCounts: leaf[0].ClassCounts,
	}

	// Children are stored after their parent; offsets are relative to this subtree.
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shiftChildren(leftNodes, 1)...)
	nodes = append(nodes, shiftChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func shiftChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

func findBestSplit(features [][]float64, labels []int, numClasses int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		_, leftLabels, _, rightLabels := splitData(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels, numClasses)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	var leftFeatures, rightFeatures [][]float64
	var leftLabels, rightLabels []int
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func weightedGini(leftLabels, rightLabels []int, numClasses int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels, numClasses) + (rightWeight/total)*gini(rightLabels, numClasses)
}

func gini(labels []int, numClasses int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range classCounts(labels, numClasses) {
		prob := count / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isPure(labels []int) bool {
	for _, label := range labels {
		if label != labels[0] {
			return false
		}
	}
	return true
}

// encodeLabels maps labels to dense indices; classes come back sorted.
func encodeLabels(labels []string) ([]string, []int) {
	seen := make(map[string]struct{})
	for _, label := range labels {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, class := range classes {
		index[class] = i
	}
	y := make([]int, len(labels))
	for i, label := range labels {
		y[i] = index[label]
	}
	return classes, y
}

func classCounts(labels []int, numClasses int) []float64 {
	counts := make([]float64, numClasses)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func normalize(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	probs := make([]float64, len(counts))
	if total == 0 {
		for i := range probs {
			probs[i] = 1 / float64(len(probs))
		}
		return probs
	}
	for i, c := range counts {
		probs[i] = c / total
	}
	return probs
}

func matrixWidth(features [][]float64) (int, error) {
	width := len(features[0])
	if width == 0 {
		return 0, errors.New("feature rows are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return width, nil
}
