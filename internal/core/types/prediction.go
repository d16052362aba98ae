package types

// FeatureNames is the canonical column order the model and scaler were fit with.
var FeatureNames = []string{
	"Pregnancies",
	"Glucose",
	"BloodPressure",
	"SkinThickness",
	"Insulin",
	"BMI",
	"DiabetesPedigreeFunction",
	"Age",
}

// NumFeatures is the length of every FeatureVector.
const NumFeatures = 8

// FeatureVector is a single row of model input, aligned to FeatureNames.
type FeatureVector []float64

func (v FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// PositiveClass is the label whose probability is reported.
const PositiveClass = 1

type Prediction struct {
	Label       int
	Probability float64
}
