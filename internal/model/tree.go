package model

import (
	"encoding/json"
	"fmt"
)

// Feature indices of the decision tree input vector
const (
	FeatureTimeMinutes = iota
	FeatureVisits
	FeatureWorkHours
	FeatureUserBlocked

	numFeatures
)

// classDistracting is the class label the tree assigns to distracting sites
const classDistracting = 1

// Features describes one hostname's usage at evaluation time
type Features struct {
	TimeSeconds int64
	Visits      int64
	WorkHours   bool
	UserBlocked bool
}

// Vector returns the tree input. Time is expressed in minutes, the unit the
// tree was trained on.
func (f Features) Vector() [numFeatures]float64 {
	return [numFeatures]float64{
		FeatureTimeMinutes: float64(f.TimeSeconds) / 60,
		FeatureVisits:      float64(f.Visits),
		FeatureWorkHours:   boolFeature(f.WorkHours),
		FeatureUserBlocked: boolFeature(f.UserBlocked),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Tree is a binary decision tree in the array layout of a trained
// DecisionTreeClassifier. Node 0 is the root; a node whose left child is -1
// is a leaf.
type Tree struct {
	ChildrenLeft  []int         `json:"children_left"`
	ChildrenRight []int         `json:"children_right"`
	Feature       []int         `json:"feature"`
	Threshold     []float64     `json:"threshold"`
	Value         [][][]float64 `json:"value"`
}

// Parse decodes and validates a tree document
func Parse(data []byte) (*Tree, error) {
	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := tree.validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &tree, nil
}

func (t *Tree) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == -1 {
			if right != -1 {
				return fmt.Errorf("node %d: leaf with a right child", i)
			}
			if len(t.Value[i]) == 0 || len(t.Value[i][0]) == 0 {
				return fmt.Errorf("node %d: leaf without class values", i)
			}
			continue
		}

		// Children always follow their parent, which also rules out cycles
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if f := t.Feature[i]; f < 0 || f >= numFeatures {
			return fmt.Errorf("node %d: unknown feature %d", i, f)
		}
	}
	return nil
}

// Predict reports whether the tree classifies f as distracting
func (t *Tree) Predict(f Features) bool {
	x := f.Vector()

	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}

	counts := t.Value[node][0]
	best := 0
	for class, count := range counts {
		if count > counts[best] {
			best = class
		}
	}
	return best == classDistracting
}
