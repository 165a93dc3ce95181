package csvexport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"txexport/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Sink writes records to a single CSV file. The file is replaced atomically
// so readers never observe a half-written export.
type Sink struct {
	path string
}

func NewSink(path string) (*Sink, error) {
	if path == "" {
		return nil, errors.New("export path is required")
	}
	return &Sink{path: path}, nil
}

func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Export(ctx context.Context, header []string, records []domain.TransactionRecord) (err error) {
	_, span := otel.Tracer("txexport/csvexport").Start(ctx, "csvexport.export")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("export.path", s.path),
		attribute.Int("export.records", len(records)),
	)

	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		if err = w.Write(record.Row()); err != nil {
			return fmt.Errorf("write record %s: %w", record.Hash, err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync export: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod export: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}

	slog.Info("csv export written", "path", s.path, "records", len(records))
	return nil
}
