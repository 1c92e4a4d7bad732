package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

const (
	defaultMaxDocumentBytes = 50 << 20
	maxBatchDocuments       = 100
	defaultSummaryWindow    = 30 * 24 * time.Hour
	maxFileNameLength       = 255
	maxTenantIDLength       = 128
)

// UsageSummarizer reads aggregated usage; satisfied by repository.UsageRepository.
type UsageSummarizer interface {
	Summarize(ctx context.Context, tenantID string, since time.Time) ([]entity.UsageSummary, error)
}

type ExtractionService struct {
	extractor pipeline.Extractor
	batch     *pipeline.Batch
	usage     UsageSummarizer
	maxBytes  int
	logger    *slog.Logger
}

type ServiceOption func(*ExtractionService)

// WithMaxDocumentBytes rejects decoded documents larger than n bytes.
func WithMaxDocumentBytes(n int) ServiceOption {
	return func(s *ExtractionService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithUsage enables UsageSummary.
func WithUsage(u UsageSummarizer) ServiceOption {
	return func(s *ExtractionService) { s.usage = u }
}

// WithBatch overrides the batch coordinator used by ExtractBatch.
func WithBatch(b *pipeline.Batch) ServiceOption {
	return func(s *ExtractionService) { s.batch = b }
}

func NewExtractionService(ex pipeline.Extractor, logger *slog.Logger, opts ...ServiceOption) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractionService{extractor: ex, maxBytes: defaultMaxDocumentBytes, logger: logger}
	for _, o := range opts {
		o(s)
	}
	if s.batch == nil {
		s.batch = pipeline.NewBatch(ex, logger)
	}
	return s
}

// Extract implements ExtractionServer. Extraction failures come back as a
// result with success=false; only malformed requests produce a gRPC error.
func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var doc Document
	if err := fromStruct(in, &doc); err != nil {
		s.logger.Error("extract request malformed", "error", err)
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	req, err := s.decode(doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting extraction", "file", req.FileName, "mime", req.MIMEType, "bytes", req.Size(), "request_id", common.RequestIDFromContext(ctx))
	res := s.extractor.Extract(ctx, req)

	out, err := toStruct(res)
	if err != nil {
		s.logger.Error("encode extraction result", "file", req.FileName, "error", err)
		return nil, common.InternalError("encode result failed")
	}
	return out, nil
}

func (s *ExtractionService) ExtractBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var br batchRequest
	if err := fromStruct(in, &br); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	if len(br.Documents) > maxBatchDocuments {
		return nil, common.InvalidArgumentErrorf("at most %d documents per batch, got %d", maxBatchDocuments, len(br.Documents))
	}

	reqs := make([]entity.ExtractionRequest, len(br.Documents))
	for i, d := range br.Documents {
		r, err := s.decode(d)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "documents[%d]: %s", i, status.Convert(err).Message())
		}
		reqs[i] = r
	}

	results := s.batch.ExtractBatch(ctx, reqs)
	out, err := toStruct(struct {
		Results []entity.ExtractionResult `json:"results"`
	}{Results: results})
	if err != nil {
		s.logger.Error("encode batch results", "error", err)
		return nil, common.InternalError("encode results failed")
	}
	return out, nil
}

func (s *ExtractionService) Validate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var vr validateRequest
	if err := fromStruct(in, &vr); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	if vr.Result == nil {
		return nil, common.InvalidArgumentError("result is required")
	}
	out, err := toStruct(pipeline.Validate(*vr.Result))
	if err != nil {
		return nil, common.InternalError("encode report failed")
	}
	return out, nil
}

func (s *ExtractionService) UsageSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.usage == nil {
		return nil, status.Error(codes.Unimplemented, "usage store not configured")
	}
	var ur usageRequest
	if err := fromStruct(in, &ur); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	tenant := strings.TrimSpace(ur.TenantID)
	if tenant == "" {
		tenant = common.TenantIDFromContext(ctx)
	}
	if tenant == "" {
		return nil, common.InvalidArgumentError("tenant_id is required")
	}
	since := time.Now().UTC().Add(-defaultSummaryWindow)
	if ur.Since != "" {
		t, err := time.Parse(time.RFC3339, ur.Since)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("since must be RFC 3339: %v", err)
		}
		since = t
	}

	sum, err := s.usage.Summarize(ctx, tenant, since)
	if err != nil {
		s.logger.Warn("usage summary failed", "tenant_id", tenant, "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, common.InternalError("usage summary failed")
	}
	if sum == nil {
		sum = []entity.UsageSummary{}
	}
	out, err := toStruct(struct {
		TenantID string                `json:"tenant_id"`
		Since    string                `json:"since"`
		Methods  []entity.UsageSummary `json:"methods"`
	}{TenantID: tenant, Since: since.Format(time.RFC3339), Methods: sum})
	if err != nil {
		return nil, common.InternalError("encode summary failed")
	}
	return out, nil
}

// decode turns a wire document into a request. Empty or unsupported content
// is left for the orchestrator to reject so it is recorded as usage.
func (s *ExtractionService) decode(d Document) (entity.ExtractionRequest, error) {
	// padding makes DecodedLen overshoot by at most two bytes
	if s.maxBytes > 0 && base64.StdEncoding.DecodedLen(len(d.Content)) > s.maxBytes+2 {
		return entity.ExtractionRequest{}, common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxBytes)
	}
	req, err := d.request()
	if err != nil {
		return entity.ExtractionRequest{}, common.InvalidArgumentError(err.Error())
	}
	v := common.NewValidator().
		Field("content", req.Content, common.MaxBytes(s.maxBytes)).
		Field("file_name", req.FileName, common.MaxLength(maxFileNameLength)).
		Field("tenant_id", req.TenantID, common.MaxLength(maxTenantIDLength))
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.ExtractionRequest{}, err
	}
	return req, nil
}
