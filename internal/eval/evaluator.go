// Package eval loads lifecycle envelopes from files for local invocation.
// Envelopes may be plain JSON request bodies or Pkl modules that render to
// one.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/apple/pkl-go/pkl"
	"github.com/google/uuid"

	"github.com/picklr-io/ggprov/internal/ir"
)

// Evaluator turns envelope files into events.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadEvent reads the envelope at path. Pkl modules are evaluated with the
// given external properties and rendered as JSON. A missing RequestId is
// filled with a random one.
func (e *Evaluator) LoadEvent(ctx context.Context, path string, properties map[string]string) (*ir.Event, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl":
		data, err = e.renderPkl(ctx, path, properties)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	ev, err := DecodeEvent(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

func (e *Evaluator) renderPkl(ctx context.Context, path string, properties map[string]string) ([]byte, error) {
	opts := []func(*pkl.EvaluatorOptions){
		pkl.PreconfiguredOptions,
		func(o *pkl.EvaluatorOptions) {
			o.OutputFormat = "json"
		},
	}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	var (
		evaluator pkl.Evaluator
		err       error
	)
	if e.projectDir != "" {
		u, perr := url.Parse("file://" + e.projectDir + "/")
		if perr != nil {
			return nil, fmt.Errorf("failed to parse project directory URL: %w", perr)
		}
		evaluator, err = pkl.NewProjectEvaluator(ctx, u, opts...)
	} else {
		evaluator, err = pkl.NewEvaluator(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	text, err := evaluator.EvaluateOutputText(ctx, pkl.FileSource(path))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, err)
	}
	return []byte(text), nil
}

// DecodeEvent parses a JSON envelope and checks it.
func DecodeEvent(data []byte) (*ir.Event, error) {
	var ev ir.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Properties == nil {
		ev.Properties = ir.Properties{}
	}
	if ev.RequestID == "" {
		ev.RequestID = uuid.NewString()
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
