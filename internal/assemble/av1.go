package assemble

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"framebroker/internal/faults"
	"framebroker/internal/logging"
)

// AV1 encodes an MP4 intermediate with FFmpeg, then re-encodes it to AV1 in
// a Matroska container through the drapto library.
type AV1 struct {
	Intermediate *FFmpeg
	Logger       *slog.Logger
}

// Format implements Assembler.
func (a *AV1) Format() string { return "av1" }

// Assemble implements Assembler.
func (a *AV1) Assemble(ctx context.Context, req Request) ([]byte, error) {
	if len(req.Frames) == 0 {
		return []byte{}, nil
	}
	if a.Intermediate == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "assemble", "av1", "intermediate encoder not configured", nil)
	}
	dir, err := os.MkdirTemp(a.Intermediate.WorkDir, "framebroker-av1-")
	if err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "av1", "create work dir", err)
	}
	defer os.RemoveAll(dir)

	intermediate, err := a.Intermediate.encodeFile(ctx, dir, req)
	if err != nil {
		return nil, err
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "assemble", "av1", "create drapto encoder", err)
	}
	outDir := filepath.Join(dir, "encoded")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "av1", "create output dir", err)
	}
	if _, err := encoder.EncodeWithReporter(ctx, intermediate, outDir, nil); err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "av1", "drapto encode", err)
	}

	output := filepath.Join(outDir, stem(intermediate)+".mkv")
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "av1", "read output", err)
	}
	logging.NewComponentLogger(a.Logger, "assemble").Info("av1 encode finished",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int64("bytes", int64(len(data))),
	)
	return data, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	if s := strings.TrimSuffix(base, filepath.Ext(base)); s != "" {
		return s
	}
	return base
}
