package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// Document is the wire form of an ExtractionRequest. Content is base64.
type Document struct {
	Content      string `json:"content"`
	MIMEType     string `json:"mime_type,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	ForcePremium bool   `json:"force_premium,omitempty"`
}

type batchRequest struct {
	Documents []Document `json:"documents"`
}

type validateRequest struct {
	Result *entity.ExtractionResult `json:"result"`
}

type usageRequest struct {
	TenantID string `json:"tenant_id"`
	Since    string `json:"since,omitempty"` // RFC 3339
}

// EncodeDocument builds the Extract request payload for req.
func EncodeDocument(req entity.ExtractionRequest) (*structpb.Struct, error) {
	return toStruct(documentOf(req))
}

func documentOf(req entity.ExtractionRequest) Document {
	return Document{
		Content:      base64.StdEncoding.EncodeToString(req.Content),
		MIMEType:     req.MIMEType,
		FileName:     req.FileName,
		TenantID:     req.TenantID,
		ForcePremium: req.ForcePremium,
	}
}

// EncodeBatch builds the ExtractBatch request payload.
func EncodeBatch(reqs []entity.ExtractionRequest) (*structpb.Struct, error) {
	docs := make([]Document, len(reqs))
	for i, r := range reqs {
		docs[i] = documentOf(r)
	}
	return toStruct(batchRequest{Documents: docs})
}

// DecodeResult reads an ExtractionResult out of an Extract response.
func DecodeResult(s *structpb.Struct) (entity.ExtractionResult, error) {
	var res entity.ExtractionResult
	err := fromStruct(s, &res)
	return res, err
}

func (d Document) request() (entity.ExtractionRequest, error) {
	content, err := base64.StdEncoding.DecodeString(d.Content)
	if err != nil {
		return entity.ExtractionRequest{}, fmt.Errorf("content must be base64: %w", err)
	}
	mime := d.MIMEType
	if mime == "" && d.FileName != "" {
		mime = constants.MIMEFromExt(filepath.Ext(d.FileName))
	}
	// decoded buffer is already private to this request
	return entity.ExtractionRequest{
		Content:      content,
		MIMEType:     mime,
		FileName:     d.FileName,
		TenantID:     d.TenantID,
		ForcePremium: d.ForcePremium,
	}, nil
}

// toStruct goes through encoding/json so entity JSON tags define the wire names.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty payload")
	}
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
