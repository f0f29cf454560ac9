package output

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// CompileJQ parses and compiles a jq expression, returning a usage error on
// bad syntax so flag validation can fail before any request is made.
func CompileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint("Invalid --jq expression", err.Error())
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ErrUsageHint("Invalid --jq expression", err.Error())
	}
	return code, nil
}

func (w *Writer) writeJQ(v any) error {
	code, err := CompileJQ(w.opts.JQ)
	if err != nil {
		return err
	}

	input, err := jqInput(v)
	if err != nil {
		return fmt.Errorf("preparing jq input: %w", err)
	}

	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := result.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return ErrUsageHint("jq evaluation failed", err.Error())
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
}

// jqInput converts v to the plain map/slice/float64 shapes gojq accepts.
func jqInput(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
