package inference

import (
	"encoding/json"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// featureDim is the fixed HRVFeatures vector length.
const featureDim = 14

// scaler holds the per-feature standardization the trained model expects,
// loaded once at startup from MLConfig.ScalerPath. The file format itself
// (mean/scale arrays) is a small, domain-agnostic blob, so it is read with
// the standard library's encoding/json rather than a third-party
// serializer.
type scaler struct {
	Mean  [featureDim]float64 `json:"mean"`
	Scale [featureDim]float64 `json:"scale"`
}

func (s *scaler) transform(v [featureDim]float64) [featureDim]float32 {
	var out [featureDim]float32
	for i, x := range v {
		sc := s.Scale[i]
		if sc == 0 {
			sc = 1
		}
		out[i] = float32((x - s.Mean[i]) / sc)
	}
	return out
}

// Predictor maps the unscaled feature vector to the three raw cognitive
// scores; implementations apply their own scaler, and the caller clamps
// the results to [0,100].
type Predictor interface {
	Predict(features [featureDim]float64) (stress, load, fatigue float64, err error)
	Close()
}

// onnxPredictor runs an ONNX-exported scikit-learn/gradient-boosted model
// through github.com/yalue/onnxruntime_go, the ONNX runtime binding used
// elsewhere in the retrieved pack for small, locally-loaded inference
// models (hammamikhairi-otto's wakeword/melspectrogram/embedding models).
type onnxPredictor struct {
	scaler  scaler
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// LoadTrainedModel loads the scaler and ONNX model at the given paths.
// Per the "Model loading" design note, absence or any load failure is a
// normal branch handled by the caller falling back to the heuristic
// engine -- this function only reports the error, it never retries.
func LoadTrainedModel(modelPath, scalerPath string) (Predictor, error) {
	sb, err := os.ReadFile(scalerPath)
	if err != nil {
		return nil, fmt.Errorf("inference: read scaler: %w", err)
	}
	var sc scaler
	if err := json.Unmarshal(sb, &sc); err != nil {
		return nil, fmt.Errorf("inference: parse scaler: %w", err)
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("inference: model path: %w", err)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("inference: onnx init: %w", err)
		}
	}

	in, err := ort.NewEmptyTensor[float32](ort.NewShape(1, featureDim))
	if err != nil {
		return nil, fmt.Errorf("inference: input tensor: %w", err)
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		in.Destroy()
		return nil, fmt.Errorf("inference: output tensor: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, fmt.Errorf("inference: model io info: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputInfo[0].Name}, []string{outputInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out},
		nil,
	)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, fmt.Errorf("inference: open session: %w", err)
	}

	return &onnxPredictor{scaler: sc, session: session, input: in, output: out}, nil
}

func (p *onnxPredictor) Predict(features [featureDim]float64) (stress, load, fatigue float64, err error) {
	scaled := p.scaler.transform(features)
	copy(p.input.GetData(), scaled[:])
	if err := p.session.Run(); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	out := p.output.GetData()
	if len(out) < 3 {
		return 0, 0, 0, fmt.Errorf("%w: short model output", ErrPredictionFailed)
	}
	return float64(out[0]), float64(out[1]), float64(out[2]), nil
}

func (p *onnxPredictor) Close() {
	p.session.Destroy()
	p.input.Destroy()
	p.output.Destroy()
}
