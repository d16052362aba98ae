package core

import (
	"diabetes-backend/internal/core/types"
	"encoding/json"
	"errors"
	"fmt"
)

const leafNode = -1

// treeParams mirrors sklearn's DecisionTreeClassifier.tree_ arrays. Value holds
// the per-class sample weights of each node, either as [node][class] or as
// tree_.value's native [node][output][class] with a single output.
type treeParams struct {
	ChildrenLeft  []int           `json:"children_left"`
	ChildrenRight []int           `json:"children_right"`
	Feature       []int           `json:"feature"`
	Threshold     []float64       `json:"threshold"`
	Value         json.RawMessage `json:"value"`
	Classes       []float64       `json:"classes_"`
	NFeatures     int             `json:"n_features_in_"`
}

func decodeTreeValue(raw json.RawMessage) ([][]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var flat [][]float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var perOutput [][][]float64
	if err := json.Unmarshal(raw, &perOutput); err != nil {
		return nil, fmt.Errorf("value must be [node][class] or [node][output][class]: %w", err)
	}
	flat = make([][]float64, len(perOutput))
	for i, outputs := range perOutput {
		if len(outputs) != 1 {
			return nil, fmt.Errorf("node %d has %d outputs, only single output trees are supported", i, len(outputs))
		}
		flat[i] = outputs[0]
	}
	return flat, nil
}

type treeNode struct {
	featureIdx int
	threshold  float64
	left       int
	right      int
	proba      []float64
}

type DecisionTreeModel struct {
	nodes     []treeNode
	classes   []int
	nFeatures int
}

func LoadDecisionTree(data []byte) (*DecisionTreeModel, error) {
	var params treeParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("error decoding decision tree: %w", err)
	}

	value, err := decodeTreeValue(params.Value)
	if err != nil {
		return nil, fmt.Errorf("error decoding decision tree: %w", err)
	}
	classes, err := decodeClasses(params.Classes)
	if err != nil {
		return nil, fmt.Errorf("error decoding decision tree: %w", err)
	}

	n := len(params.ChildrenLeft)
	if n == 0 {
		return nil, errors.New("decision tree has no nodes")
	}
	if len(params.ChildrenRight) != n || len(params.Feature) != n || len(params.Threshold) != n || len(value) != n {
		return nil, fmt.Errorf("decision tree arrays have mismatched lengths")
	}
	if len(classes) == 0 {
		return nil, errors.New("decision tree is missing classes_")
	}

	nFeatures := params.NFeatures
	if nFeatures == 0 {
		nFeatures = types.NumFeatures
	}

	nodes := make([]treeNode, n)
	for i := 0; i < n; i++ {
		left, right := params.ChildrenLeft[i], params.ChildrenRight[i]
		if left == leafNode {
			counts := value[i]
			if len(counts) != len(classes) {
				return nil, fmt.Errorf("node %d has %d class weights, expected %d", i, len(counts), len(classes))
			}
			proba, err := normalizeCounts(counts)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			nodes[i] = treeNode{featureIdx: leafNode, left: leafNode, right: leafNode, proba: proba}
			continue
		}

		// Children always come after their parent in sklearn's depth-first layout,
		// which also rules out cycles.
		if left <= i || left >= n || right <= i || right >= n {
			return nil, fmt.Errorf("node %d has invalid children (%d, %d)", i, left, right)
		}
		if params.Feature[i] < 0 || params.Feature[i] >= nFeatures {
			return nil, fmt.Errorf("node %d splits on out of range feature %d", i, params.Feature[i])
		}
		nodes[i] = treeNode{
			featureIdx: params.Feature[i],
			threshold:  params.Threshold[i],
			left:       left,
			right:      right,
		}
	}

	return &DecisionTreeModel{nodes: nodes, classes: classes, nFeatures: nFeatures}, nil
}

func normalizeCounts(counts []float64) ([]float64, error) {
	total := 0.0
	for _, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("negative class weight %f", c)
		}
		total += c
	}
	if total == 0 {
		return nil, errors.New("leaf has zero total weight")
	}
	proba := make([]float64, len(counts))
	for i, c := range counts {
		proba[i] = c / total
	}
	return proba, nil
}

func (dt *DecisionTreeModel) leaf(features types.FeatureVector) (*treeNode, error) {
	if err := checkFeatureCount(features, dt.nFeatures); err != nil {
		return nil, err
	}
	idx := 0
	for {
		node := &dt.nodes[idx]
		if node.featureIdx == leafNode {
			return node, nil
		}
		if features[node.featureIdx] <= node.threshold {
			idx = node.left
		} else {
			idx = node.right
		}
	}
}

func (dt *DecisionTreeModel) Classify(features types.FeatureVector) (int, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range node.proba {
		if p > node.proba[best] {
			best = i
		}
	}
	return dt.classes[best], nil
}

func (dt *DecisionTreeModel) PredictProba(features types.FeatureVector) ([]float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(node.proba))
	copy(out, node.proba)
	return out, nil
}

func (dt *DecisionTreeModel) Release() {}
