package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
)

var _ core.Extractor = (*DocconvExtractor)(nil)

// DocconvExtractor converts placed files into text chunks, dispatching on
// FileKind. Office formats go through docconv; spreadsheets are converted to
// an intermediate CSV first; media uploads yield a single pseudo-chunk built
// from the AI description.
type DocconvExtractor struct {
	log *logger.Logger
	cfg Config
}

func NewDocconvExtractor(log *logger.Logger, cfg Config) *DocconvExtractor {
	return &DocconvExtractor{log: log.With("component", "extractor"), cfg: cfg}
}

func (e *DocconvExtractor) Extract(ctx context.Context, req core.ExtractRequest) ([]core.Chunk, []string, error) {
	kind := ResolveKind(req.MimeType, req.OriginalName)

	if kind.IsMedia() {
		// No structure to extract: one pseudo-chunk carrying the description.
		chunks := []core.Chunk{{
			Text:     req.Summary,
			Metadata: map[string]string{"source": req.FilePath},
		}}
		return appendAISections(chunks, req), nil, nil
	}

	body, tempFiles, err := e.extractBody(kind, req)
	if err != nil {
		return nil, tempFiles, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, tempFiles, fmt.Errorf("%s yielded no text: %w", req.OriginalName, ErrExtractionFailed)
	}

	chunks, err := e.chunkText(ctx, body, req.FilePath)
	if err != nil {
		return nil, tempFiles, err
	}
	if len(chunks) == 0 {
		return nil, tempFiles, fmt.Errorf("%s yielded no chunks: %w", req.OriginalName, ErrExtractionFailed)
	}

	chunks[0].Text = fmt.Sprintf("The content given below belongs to %s file\n%s", req.OriginalName, chunks[0].Text)

	return appendAISections(chunks, req), tempFiles, nil
}

// extractBody produces the plain text for a non-media kind, creating
// intermediate files where the format requires a conversion step.
func (e *DocconvExtractor) extractBody(kind FileKind, req core.ExtractRequest) (string, []string, error) {
	switch kind {
	case KindText, KindCSV:
		b, err := os.ReadFile(req.FilePath)
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", req.OriginalName, err)
		}
		return string(b), nil, nil

	case KindPDF:
		res, err := docconv.ConvertPath(req.FilePath)
		if err == nil && strings.TrimSpace(res.Body) != "" {
			return res.Body, nil, nil
		}
		// Structural extraction came up empty (scanned PDF); try OCR.
		e.log.Warn("pdf structural extraction empty, trying OCR",
			"document_id", req.DocumentID, "file", req.OriginalName)
		body, ocrErr := e.ocrConvert(req.FilePath)
		if ocrErr != nil {
			return "", nil, fmt.Errorf("pdf extraction for %s: %w", req.OriginalName, ocrErr)
		}
		return body, nil, nil

	case KindWord:
		res, err := docconv.ConvertPath(req.FilePath)
		if err != nil {
			return "", nil, fmt.Errorf("convert %s: %w", req.OriginalName, err)
		}
		return res.Body, nil, nil

	case KindLegacyWord, KindSlides:
		res, err := docconv.ConvertPath(req.FilePath)
		if err != nil {
			return "", nil, fmt.Errorf("convert %s: %w", req.OriginalName, err)
		}
		tmp := req.FilePath + ".txt"
		if err := os.WriteFile(tmp, []byte(res.Body), 0o644); err != nil {
			return "", nil, fmt.Errorf("write intermediate txt: %w", err)
		}
		return res.Body, []string{tmp}, nil

	case KindSpreadsheet, KindLegacySpreadsheet:
		toCSV := spreadsheetToCSV
		if kind == KindLegacySpreadsheet {
			toCSV = legacySpreadsheetToCSV
		}
		tmp := req.FilePath + ".csv"
		if err := toCSV(req.FilePath, tmp); err != nil {
			return "", nil, fmt.Errorf("convert %s to csv: %w", req.OriginalName, err)
		}
		b, err := os.ReadFile(tmp)
		if err != nil {
			return "", []string{tmp}, fmt.Errorf("read intermediate csv: %w", err)
		}
		return string(b), []string{tmp}, nil

	case KindHTML:
		f, err := os.Open(req.FilePath)
		if err != nil {
			return "", nil, fmt.Errorf("open %s: %w", req.OriginalName, err)
		}
		defer f.Close()
		res, err := docconv.Convert(f, "text/html", false)
		if err != nil {
			return "", nil, fmt.Errorf("convert %s: %w", req.OriginalName, err)
		}
		return res.Body, nil, nil

	default:
		return "", nil, fmt.Errorf("unsupported content type %q for %s: %w", req.MimeType, req.OriginalName, ErrExtractionFailed)
	}
}

// ocrConvert routes the file through docconv's image path, which performs
// OCR when the binary is built with docconv's ocr tag.
func (e *DocconvExtractor) ocrConvert(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := docconv.Convert(f, "image/png", false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// spreadsheetToCSV flattens every sheet of an XLSX workbook into one CSV file.
func spreadsheetToCSV(src, dst string) error {
	wb, err := excelize.OpenFile(src)
	if err != nil {
		return err
	}
	defer wb.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// legacySpreadsheetToCSV flattens a binary (CFB) XLS workbook into one CSV
// file. excelize only reads zip-packaged workbooks, so the legacy format gets
// its own reader.
func legacySpreadsheetToCSV(src, dst string) error {
	wb, closer, err := xls.OpenWithCloser(src, "utf-8")
	if err != nil {
		return err
	}
	defer closer.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		for j := 0; j <= int(sheet.MaxRow); j++ {
			row := sheet.Row(j)
			if row == nil {
				continue
			}
			var cells []string
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			if len(cells) == 0 {
				continue
			}
			if err := w.Write(cells); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// chunkText runs the fragment/chunk stages over extracted text and collects
// the ordered result.
func (e *DocconvExtractor) chunkText(ctx context.Context, text, source string) ([]core.Chunk, error) {
	g, gctx := errgroup.WithContext(ctx)

	frags := streamFragments(gctx, g, text)
	chunkCh := streamChunk(gctx, g, frags, e.cfg.ChunkTokens, e.cfg.OverlapTokens)

	var out []core.Chunk
	g.Go(func() error {
		for c := range chunkCh {
			out = append(out, core.Chunk{
				Text:     c.Text,
				Metadata: map[string]string{"source": source},
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// appendAISections adds the summary and overview pseudo-chunks when present.
func appendAISections(chunks []core.Chunk, req core.ExtractRequest) []core.Chunk {
	meta := map[string]string{"source": req.FilePath}
	if strings.TrimSpace(req.Summary) != "" {
		chunks = append(chunks, core.Chunk{
			Text:     fmt.Sprintf("The following is an AI generated summary of the %s file\n%s", req.OriginalName, req.Summary),
			Metadata: meta,
		})
	}
	if strings.TrimSpace(req.Overview) != "" {
		chunks = append(chunks, core.Chunk{
			Text:     fmt.Sprintf("The following is an AI generated overview of the %s file\n%s", req.OriginalName, req.Overview),
			Metadata: meta,
		})
	}
	return chunks
}
