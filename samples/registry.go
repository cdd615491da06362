package samples

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/LynnColeArt/guda-samples/kernels"
)

var registry = map[string]func() Sample{
	"vector-add":    func() Sample { return &vectorAddSample{} },
	"matmul":        func() Sample { return newMatMul("matmul", kernels.MatMulName) },
	"matmul-tiled":  func() Sample { return newMatMul("matmul-tiled", kernels.MatrixMultiplyTiledName) },
	"matmul-double": func() Sample { return &matMulDoubleSample{} },
	"blur2d":        func() Sample { return &blur2DSample{} },
}

// Names returns the registered sample names in sorted order.
func Names() []string {
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}

// New returns a fresh instance of the named sample.
func New(name string) (Sample, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown sample %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Select resolves requested names into the samples to run. No names
// selects every sample; duplicates are dropped keeping first occurrence.
func Select(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return Names(), nil
	}
	names := lo.Uniq(requested)
	if unknown := lo.Without(names, Names()...); len(unknown) > 0 {
		return nil, errors.Errorf("unknown samples: %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return names, nil
}
