package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postop-monitor/internal/llm"
	"postop-monitor/pkg"
)

// TextExtractor is the document-extraction collaborator. It returns
// best-effort text; PDFCapable reports whether PDF parsing is available so
// the intake can degrade instead of failing.
type TextExtractor interface {
	ExtractText(path, filename string) (string, error)
	PDFCapable() bool
}

// HeatmapAnalyzer is the image collaborator: given a stored image and the
// surgery context, it produces an analysis text and an artifact path.
type HeatmapAnalyzer interface {
	Analyze(path, filename string, info pkg.SurgeryInfo) (analysis, artifactPath string, err error)
}

// defaultComplications is the canned complication list used when structured
// extraction fails entirely.
var defaultComplications = []string{"infection", "bleeding", "pain", "swelling", "delayed healing"}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tiff": true, ".dcm": true,
}

// IntakeService runs the upload pipeline: store the file, extract text,
// analyze it, extract structured surgery info, and update the session.
type IntakeService struct {
	store     SessionStore
	llm       llm.Client
	extractor TextExtractor
	heatmap   HeatmapAnalyzer
	uploadDir string
	logger    *logrus.Logger
}

func NewIntakeService(
	store SessionStore,
	client llm.Client,
	extractor TextExtractor,
	heatmap HeatmapAnalyzer,
	uploadDir string,
	logger *logrus.Logger,
) *IntakeService {
	return &IntakeService{
		store:     store,
		llm:       client,
		extractor: extractor,
		heatmap:   heatmap,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// HandleUpload stores the file and runs the analysis pipeline. Extraction and
// image failures degrade to advisory text; the upload itself never aborts for
// them.
func (i *IntakeService) HandleUpload(ctx context.Context, patientID, filename string, data []byte) (*pkg.UploadResponse, error) {
	if filename == "" {
		return nil, fmt.Errorf("no file selected")
	}
	stored := fmt.Sprintf("%s_%s_%s", patientID, uuid.New().String()[:8], filepath.Base(filename))
	path := filepath.Join(i.uploadDir, stored)
	if err := os.MkdirAll(i.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	isImage := imageExtensions[ext]

	var content string
	if !isImage {
		text, err := i.extractor.ExtractText(path, filename)
		if err != nil {
			// Best-effort: continue with whatever was extracted.
			i.logger.WithError(err).WithField("filename", stored).Warn("document extraction failed")
		}
		content = text
		if ext == ".pdf" && !i.extractor.PDFCapable() {
			content = "PDF file uploaded. Text extraction is not available."
		}
	}

	analysis := i.analyzeDocument(ctx, content, stored)
	info := i.extractSurgeryInfo(ctx, analysis)

	s := i.store.Get(patientID)

	upload := pkg.Upload{
		Filename:    stored,
		Content:     content,
		Analysis:    analysis,
		SurgeryInfo: info,
		Timestamp:   nowFn(),
		IsImage:     isImage,
	}

	if isImage {
		// Focus the heatmap on the surgery region: prefer info from this
		// upload, fall back to anything already known for the patient.
		effective := info
		if effective.Empty() {
			effective = s.SurgeryInfo
		}
		heatText, artifact, err := i.heatmap.Analyze(path, stored, effective)
		if err != nil {
			heatText = fmt.Sprintf("Image uploaded. Analysis available: %v", err)
			artifact = ""
			i.logger.WithError(err).WithField("filename", stored).Warn("heatmap analysis failed")
		}
		upload.HeatmapAnalysis = heatText
		upload.HeatmapPath = artifact
	}

	s.Uploads = append(s.Uploads, upload)
	if !info.Empty() {
		// Full replace, and only when the new upload names a surgery type.
		s.SurgeryInfo = info
		if s.DialogueStage != pkg.StageEscalated {
			s.DialogueStage = pkg.StageSymptomsInquiry
		}
	}
	i.store.Upsert(s)

	return &pkg.UploadResponse{
		Message:         "File uploaded successfully",
		Analysis:        analysis,
		Filename:        stored,
		IsImage:         isImage,
		HeatmapAnalysis: upload.HeatmapAnalysis,
		HeatmapPath:     filepath.ToSlash(upload.HeatmapPath),
	}, nil
}

// analyzeDocument asks the completion service to identify the surgery from
// the report. Failures return operator-visible advisory text instead of an
// error.
func (i *IntakeService) analyzeDocument(ctx context.Context, content, filename string) string {
	prompt := fmt.Sprintf(`Analyze this medical report and identify:
1. SURGERY TYPE: What specific surgery was performed? (e.g., appendectomy, knee replacement, cataract surgery)
2. SURGERY DATE: When was it performed?
3. PATIENT CONDITION: Current status mentioned in report

Be specific about surgery type.

File: %s
Content: %s

Format: "Surgery Type: [type], Date: [date], Status: [status]"
`, filename, truncateRunes(content, 2000))

	out, err := i.llm.Complete(ctx, llm.Request{
		System:      "Medical surgery report analyzer. Identify surgery type precisely.",
		User:        prompt,
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		if err == llm.ErrNotConfigured {
			return "Error: the completion service is not configured, analysis unavailable."
		}
		return fmt.Sprintf("Analysis error: %v. Please check the completion service configuration.", err)
	}
	return out
}

// extractSurgeryInfo asks for strict JSON and falls back to heuristic text
// parsing, then to a fixed default payload, when the model output is
// malformed.
func (i *IntakeService) extractSurgeryInfo(ctx context.Context, analysis string) pkg.SurgeryInfo {
	prompt := fmt.Sprintf(`From this analysis, extract JSON format strictly with these keys (include site/side if present, else empty string):
{
  "surgery_type": "specific surgery name",
  "surgery_date": "date if mentioned",
  "site": "anatomical region (e.g., knee, lung, abdomen) or empty if unknown",
  "side": "left/right/bilateral or empty if unknown",
  "common_complications": ["list of 3-5 common complications for this surgery type"],
  "recovery_timeline": "typical recovery period"
}

Analysis: %s

Return only valid JSON, no other text.`, truncateRunes(analysis, 700))

	out, err := i.llm.Complete(ctx, llm.Request{
		System:      "Extract surgery info as JSON. List common complications for the surgery type.",
		User:        prompt,
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		if err == llm.ErrNotConfigured {
			return pkg.SurgeryInfo{}
		}
		return fallbackSurgeryInfo(analysis)
	}

	if info, ok := parseSurgeryJSON(out); ok {
		return info
	}
	return fallbackSurgeryInfo(analysis)
}

// parseSurgeryJSON pulls the first {...} window out of model text and decodes
// it.
func parseSurgeryJSON(text string) (pkg.SurgeryInfo, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return pkg.SurgeryInfo{}, false
	}
	var info pkg.SurgeryInfo
	if err := json.Unmarshal([]byte(text[start:end+1]), &info); err != nil {
		return pkg.SurgeryInfo{}, false
	}
	return info, true
}

// fallbackSurgeryInfo scans the analysis text for a surgery mention and
// otherwise returns the fixed default payload.
func fallbackSurgeryInfo(analysis string) pkg.SurgeryInfo {
	surgeryType := "Unknown"
	lower := strings.ToLower(analysis)
	if strings.Contains(analysis, "Surgery Type:") || strings.Contains(lower, "surgery") {
		for _, line := range strings.Split(analysis, "\n") {
			ll := strings.ToLower(line)
			if strings.Contains(ll, "surgery") || strings.Contains(ll, "procedure") {
				surgeryType = truncateRunes(line, 100)
				break
			}
		}
	}
	return pkg.SurgeryInfo{
		SurgeryType:         surgeryType,
		CommonComplications: append([]string(nil), defaultComplications...),
	}
}
