package config

import (
	"fmt"
	"log/slog"

	"github.com/vpbank/beanpoller/models"
	"github.com/vpbank/beanpoller/writer/discard"
	"github.com/vpbank/beanpoller/writer/file"
	"github.com/vpbank/beanpoller/writer/prometheus"
)

// buildWriter constructs the concrete models.OutputWriter named by w.Type.
// Unrecognized types are a parse error: a typo in a writer type should
// surface loudly rather than silently drop the sink.
func buildWriter(w rawWriter, logger *slog.Logger) (models.OutputWriter, error) {
	switch w.Type {
	case "file":
		return file.New(file.Config{
			FilePath:    w.FilePath,
			MaxBytes:    w.MaxBytes,
			MaxBackups:  w.MaxBackups,
			PrettyPrint: w.PrettyPrint,
		}, logger), nil
	case "prometheus":
		return prometheus.New(prometheus.Config{
			Namespace: w.Namespace,
		}), nil
	case "discard":
		return discard.New(), nil
	case "":
		return nil, fmt.Errorf("config: writer: missing \"type\"")
	default:
		return nil, fmt.Errorf("config: writer: unknown type %q", w.Type)
	}
}

func buildWriters(specs []rawWriter, logger *slog.Logger) ([]models.OutputWriter, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]models.OutputWriter, 0, len(specs))
	for i, spec := range specs {
		w, err := buildWriter(spec, logger)
		if err != nil {
			return nil, fmt.Errorf("writer[%d]: %w", i, err)
		}
		out = append(out, w)
	}
	return out, nil
}
