package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/dto"
	"github.com/edusight/edusight-api/internal/models"
	appErrors "github.com/edusight/edusight-api/pkg/errors"
	"github.com/edusight/edusight-api/pkg/export"
)

type queryExecutor interface {
	Execute(username, text string) *models.QueryResult
}

type exportStore interface {
	Save(filename string, data []byte) (string, error)
	ReadFile(filename string) ([]byte, error)
}

type downloadSigner interface {
	Generate(exportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error)
}

// ExportService renders query results to downloadable CSV or PDF files.
// Export is gated on the scope's can-export capability; sensitive columns
// were already stripped by the query engine, so a rendered file never widens
// what the account could see on screen.
type ExportService struct {
	queries   queryExecutor
	registry  scopeResolver
	store     exportStore
	signer    downloadSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an export service.
func NewExportService(queries queryExecutor, registry scopeResolver, store exportStore, signer downloadSigner, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExportService{
		queries:   queries,
		registry:  registry,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Export runs the query for the user and renders its display rows into the
// requested format, returning a signed download token for the stored file.
func (s *ExportService) Export(username string, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	scope, ok := s.registry.ResolveScope(username)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown account")
	}
	if !scope.CanExport {
		return nil, appErrors.ErrExportNotAllowed
	}

	result := s.queries.Execute(username, req.Query)
	if result.Status != models.StatusSuccess {
		return nil, appErrors.Clone(appErrors.ErrValidation, result.Error)
	}

	dataset := export.Dataset{Headers: result.Columns, Rows: result.Data}
	var payload []byte
	var err error
	switch strings.ToLower(req.Format) {
	case "pdf":
		payload, err = s.pdf.Render(dataset, "Query Results")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("query_results_%s_%s.%s",
		s.now().Format("20060102_150405"), exportID[:8], strings.ToLower(req.Format))
	if _, err := s.store.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, _, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Info("export generated",
		zap.String("username", username),
		zap.String("filename", filename),
		zap.Int("records", len(result.Data)),
	)

	return &dto.ExportResponse{
		Filename:      filename,
		Format:        strings.ToLower(req.Format),
		Records:       len(result.Data),
		DownloadToken: token,
	}, nil
}

// Download resolves a signed token back to the stored file contents.
func (s *ExportService) Download(token string) (filename string, payload []byte, err error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	payload, err = s.store.ReadFile(relPath)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export no longer available")
	}
	return relPath, payload, nil
}
