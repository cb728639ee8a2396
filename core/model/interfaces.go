package model

import (
	"gonum.org/v1/gonum/mat"
)

// Transformer is implemented by preprocessing steps that learn from data.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is implemented by models that expose hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is implemented by models that accept hyperparameter updates.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
