package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/beanpoller/models"
)

// ParseServers reads every file in files (JSON or YAML, selected by
// extension) and decodes it into zero or more models.Server values.
//
// When continueOnError is true, a file that fails to parse is skipped (logged
// at WARN) and parsing continues with the remaining files — every
// successfully parsed Server is still returned, alongside a non-nil error
// summarizing what was skipped. When continueOnError is false, the first
// parse failure aborts the whole call and no servers are returned.
func ParseServers(files []string, continueOnError bool, logger *slog.Logger) ([]models.Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		servers []models.Server
		errs    []error
	)

	for _, f := range files {
		parsed, err := parseFile(f, logger)
		if err != nil {
			wrapped := fmt.Errorf("config: parse %s: %w", f, err)
			if !continueOnError {
				return nil, wrapped
			}
			logger.Warn("config: skipping file with parse error", "file", f, "error", err.Error())
			errs = append(errs, wrapped)
			continue
		}
		servers = append(servers, parsed...)
	}

	if len(errs) > 0 {
		return servers, fmt.Errorf("config: %d file(s) skipped: %w", len(errs), errors.Join(errs...))
	}
	return servers, nil
}

func parseFile(path string, logger *slog.Logger) ([]models.Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw rawFile
	// JSON is valid YAML, so yaml.Unmarshal handles both extensions; the
	// extension switch only rejects unsupported extensions. All three
	// accepted formats share one decoder and one error message.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported extension %q", filepath.Ext(path))
	}

	servers := make([]models.Server, 0, len(raw.Servers))
	for i, rs := range raw.Servers {
		s, err := buildServer(rs, logger)
		if err != nil {
			return nil, fmt.Errorf("server[%d]: %w", i, err)
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func buildServer(rs rawServer, logger *slog.Logger) (models.Server, error) {
	if rs.Host == "" {
		return models.Server{}, fmt.Errorf("missing \"host\"")
	}
	if rs.Port <= 0 {
		return models.Server{}, fmt.Errorf("invalid \"port\" %d", rs.Port)
	}

	serverWriters, err := buildWriters(rs.Writers, logger)
	if err != nil {
		return models.Server{}, fmt.Errorf("server writers: %w", err)
	}

	queries := make([]models.Query, 0, len(rs.Queries))
	for i, rq := range rs.Queries {
		queryWriters, err := buildWriters(rq.Writers, logger)
		if err != nil {
			return models.Server{}, fmt.Errorf("query[%d] writers: %w", i, err)
		}
		queries = append(queries, models.Query{
			Pattern:    rq.Pattern,
			Attributes: rq.Attributes,
			Tags:       rq.Tags,
			Writers:    queryWriters,
		})
	}

	return models.Server{
		Host:             rs.Host,
		Port:             rs.Port,
		Alias:            rs.Alias,
		Username:         rs.Username,
		Password:         rs.Password,
		Local:            rs.Local,
		CronExpression:   rs.CronExpression,
		RunPeriodSeconds: rs.RunPeriodSeconds,
		Queries:          queries,
		Writers:          serverWriters,
	}, nil
}
